package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/draftpace/draftpace/internal/config"
)

// riderLabel is the label that carries the rider id on every rider metric.
const riderLabel = "rider"

// Rider metric families exposed by the host application's exporter.
const (
	metricMass         = "rider_mass_kg"
	metricBikeMass     = "rider_bike_mass_kg"
	metricRollingCoeff = "rider_rolling_resistance"
	metricSpeed        = "rider_speed_mps"
	metricPower        = "rider_power_watts"
	metricGrade        = "rider_grade"
	metricDraftFactor  = "rider_draft_factor"
	metricDistance     = "rider_distance_meters"
	metricFTP          = "rider_ftp_watts"
)

// riderFields maps each family to the Record field it fills.
var riderFields = map[string]func(*Record, float64){
	metricMass:         func(r *Record, v float64) { r.Mass = Float(v) },
	metricBikeMass:     func(r *Record, v float64) { r.BikeMass = Float(v) },
	metricRollingCoeff: func(r *Record, v float64) { r.RollingCoeff = Float(v) },
	metricSpeed:        func(r *Record, v float64) { r.Speed = Float(v) },
	metricPower:        func(r *Record, v float64) { r.Power = Float(v) },
	metricGrade:        func(r *Record, v float64) { r.Grade = Float(v) },
	metricDraftFactor:  func(r *Record, v float64) { r.DraftFactor = Float(v) },
	metricDistance:     func(r *Record, v float64) { r.Distance = Float(v) },
	metricFTP:          func(r *Record, v float64) { r.FTP = Float(v) },
}

type promProvider struct {
	cfg    config.TelemetryConfig
	client *http.Client
}

// Roster fetches the exporter endpoint and assembles one Record per distinct
// rider label value. Families a rider is missing from leave that field nil.
func (p *promProvider) Roster(ctx context.Context) (*Roster, error) {
	mfs, err := fetchMetrics(ctx, p.client, p.cfg.Endpoint)
	if err != nil {
		slog.Warn("telemetry: prometheus fetch failed", "endpoint", p.cfg.Endpoint, "err", err)
		return nil, fmt.Errorf("telemetry: prometheus fetch: %w", err)
	}
	return buildRoster(p.cfg.SelfID, recordsFromFamilies(mfs), time.Now().UTC())
}

// recordsFromFamilies groups rider metrics by their rider label.
func recordsFromFamilies(mfs map[string]*dto.MetricFamily) map[string]Record {
	records := make(map[string]Record)
	for name, set := range riderFields {
		mf := mfs[name]
		if mf == nil {
			continue
		}
		for _, m := range mf.GetMetric() {
			id := labelValue(m, riderLabel)
			if id == "" {
				continue
			}
			v, ok := metricValue(m)
			if !ok {
				continue
			}
			rec := records[id]
			rec.ID = id
			set(&rec, v)
			records[id] = rec
		}
	}
	return records
}

// labelValue returns the value of the named label, or "" when absent.
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// metricValue extracts a gauge, untyped or counter sample value.
func metricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	}
	return 0, false
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the endpoint's auth and TLS settings.
func buildHTTPClient(cfg config.TelemetryConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if cfg.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(cfg.Auth.CertFile, cfg.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if cfg.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(cfg.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: cfg.Auth,
		},
		Timeout: cfg.Timeout,
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
