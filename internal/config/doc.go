// Package config loads and watches the draftpace configuration file (config.yaml).
//
// Top-level types:
//   - Config{Log, Engine, Telemetry, Server, Kafka}: full config tree parsed from YAML
//   - EngineConfig: tick_interval, mode (keepUp|catchUpSlow), target
//   - TelemetryConfig: source (prometheus|mqtt|static), self_id, endpoint, timeout,
//     auth, tls, mqtt, riders []
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files, header,
//     key_env, token_env, password_env; Key(), Token() and Password() resolve from
//     environment variables
//   - ServerConfig, ServerAuthConfig: HTTP port, stream interval, snapshot TTL and the
//     API key guarding control endpoints
//   - KafkaConfig: brokers, topic and buffer size of the optional output sink
//
// Load(path) reads the YAML file, applies defaults (500ms tick, keepUp, target none,
// port 8080), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors (vim, VS Code) by re-adding the watch after
// a rename event.
package config
