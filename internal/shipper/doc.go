// Package shipper publishes engine Outputs to Kafka for downstream consumers
// such as ride analytics or overlays running on another machine.
//
// Shipper.Ship() is non-blocking and has the scheduler sink signature: the
// Output is placed in an in-memory channel (kafka.buffer_size, default 1000).
// When the buffer is full the oldest entry is evicted so the latest
// recommendation is always kept.
//
// Shipper.Run() drains the buffer through a kafka-go Writer. Each message is
// the JSON Output keyed by session id, with status and mode headers. A failed
// write is retried with truncated exponential backoff (1s→60s, ±25% jitter);
// non-retriable broker errors discard the message.
package shipper
