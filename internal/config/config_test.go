package config

import "testing"

func validConfig() *Config {
	return &Config{
		Server:         ServerConfig{Host: "0.0.0.0", Port: 8080},
		WebSocket:      WebSocketConfig{HeartbeatIntervalSeconds: 30, MaxConnections: 10, MaxConnectionsPerUser: 2, MaxSubscriptionsPerConnection: 5},
		Queue:          QueueConfig{Backend: "memory"},
		Ack:            AckConfig{Backend: "memory"},
		RateLimit:      RateLimitConfig{Backend: "memory"},
		Cluster:        ClusterConfig{Enabled: false, SessionTTLSeconds: 90},
		CircuitBreaker: CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, ResetTimeoutSeconds: 30},
		Backoff:        BackoffConfig{InitialDelayMs: 100, MaxDelayMs: 30000},
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected port 0 to be rejected")
	}

	cfg = validConfig()
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected port > 65535 to be rejected")
	}
}

func TestValidate_RejectsUnknownQueueBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Backend = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown queue backend to be rejected")
	}
}

func TestValidate_RejectsUnknownRateLimitBackend(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Backend = "sql" // valid for queue/ack, not for rate limit
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected sql rate-limit backend to be rejected")
	}
}

func TestValidate_ClusterSessionTTLMustExceedHeartbeat(t *testing.T) {
	cfg := validConfig()
	cfg.Cluster.Enabled = true
	cfg.Cluster.SessionTTLSeconds = 10
	cfg.WebSocket.HeartbeatIntervalSeconds = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected session TTL not exceeding heartbeat interval to be rejected when cluster is enabled")
	}

	cfg.Cluster.SessionTTLSeconds = 90
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a TTL comfortably above the heartbeat interval to pass, got %v", err)
	}
}

func TestValidate_ClusterTTLCheckSkippedWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Cluster.Enabled = false
	cfg.Cluster.SessionTTLSeconds = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected the TTL/heartbeat check to be skipped when cluster is disabled, got %v", err)
	}
}

func TestValidate_RejectsBackoffMaxBelowInitial(t *testing.T) {
	cfg := validConfig()
	cfg.Backoff.InitialDelayMs = 500
	cfg.Backoff.MaxDelayMs = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected max delay below initial delay to be rejected")
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown log level to be rejected")
	}
}
