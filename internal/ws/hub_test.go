package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/store"
	wsHub "github.com/draftpace/draftpace/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(outs ...compute.Output) *store.Store {
	st := store.New(5 * time.Minute)
	for _, o := range outs {
		st.Put(o)
	}
	return st
}

func output(session, target string) compute.Output {
	return compute.Output{
		Status:           compute.StatusActive,
		SessionID:        session,
		Target:           target,
		RecommendedPower: 180,
		DisplayPower:     180,
		InStrongDraft:    true,
	}
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateOutput(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(output("sess-1", "1001")))

	m := readMessage(t, dial(t, wsURL))
	if m["event"] != wsHub.EventOutput {
		t.Errorf("event: got %v, want output", m["event"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	if data["session_id"] != "sess-1" {
		t.Errorf("session_id: got %v, want sess-1", data["session_id"])
	}
	if data["updated_at"] == nil || data["updated_at"] == "" {
		t.Error("updated_at: missing")
	}
	if _, ok := data["hints"].([]interface{}); !ok {
		t.Error("hints: missing or wrong type")
	}
}

func TestHub_EmptyStore_Waiting(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())

	m := readMessage(t, dial(t, wsURL))
	if m["event"] != wsHub.EventWaiting {
		t.Errorf("event: got %v, want waiting", m["event"])
	}
	if m["data"] != nil {
		t.Errorf("data: got %v, want null", m["data"])
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume the waiting frame

	st.Put(output("sess-2", "2002"))

	// Skip any frame rendered before the Put.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if m["event"] != wsHub.EventOutput {
			continue
		}
		data := m["data"].(map[string]interface{})
		if data["target"] != "2002" {
			t.Errorf("target: got %v, want 2002", data["target"])
		}
		return
	}
	t.Fatal("no output broadcast received")
}

func TestHub_UnchangedOutputNotResent(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(output("sess-1", "1001")))

	conn := dial(t, wsURL)
	readMessage(t, conn)

	// Several ticks pass with the same Output in the store.
	conn.SetReadDeadline(time.Now().Add(10 * testInterval))
	_, msg, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected repeat frame: %s", msg)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("ReadMessage: got %v, want timeout", err)
	}
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(output("sess-1", "1001")))

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
	}
	for i, conn := range conns {
		if m := readMessage(t, conn); m["event"] != wsHub.EventOutput {
			t.Errorf("client %d: event: got %v, want output", i, m["event"])
		}
	}
}

func TestHub_CountClients_MultipleClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	for i := 0; i < 3; i++ {
		readMessage(t, dial(t, wsURL)) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
