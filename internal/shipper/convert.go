package shipper

import (
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/draftpace/draftpace/internal/compute"
)

// toMessage encodes out as a JSON Kafka message keyed by session id.
// The status travels as a header so consumers can filter without decoding.
func toMessage(out compute.Output) (kafka.Message, error) {
	value, err := json.Marshal(out)
	if err != nil {
		return kafka.Message{}, err
	}
	key := out.SessionID
	if key == "" {
		key = out.Target
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  out.Timestamp,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(out.Status)},
			{Key: "mode", Value: []byte(out.Mode)},
		},
	}, nil
}
