// Command notifyhub runs the notification fan-out core: it wires
// configuration, backends, transports, and background tasks, then serves
// until an OS signal requests shutdown (spec §1, §5).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/core/internal/ack"
	"github.com/notifyhub/core/internal/authn"
	"github.com/notifyhub/core/internal/backoff"
	"github.com/notifyhub/core/internal/circuitbreaker"
	"github.com/notifyhub/core/internal/clientapi"
	"github.com/notifyhub/core/internal/cluster"
	"github.com/notifyhub/core/internal/config"
	"github.com/notifyhub/core/internal/dispatcher"
	"github.com/notifyhub/core/internal/health"
	"github.com/notifyhub/core/internal/heartbeat"
	"github.com/notifyhub/core/internal/httpapi"
	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/logging"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/queue"
	"github.com/notifyhub/core/internal/ratelimit"
	"github.com/notifyhub/core/internal/redisbus"
	"github.com/notifyhub/core/internal/registry"
	"github.com/notifyhub/core/internal/shutdown"
	"github.com/notifyhub/core/internal/template"
	"github.com/notifyhub/core/internal/tenant"
	"github.com/notifyhub/core/internal/transport/sse"
	"github.com/notifyhub/core/internal/transport/ws"
)

func main() {
	bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(&bootstrap)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(log)

	reg := prometheus.NewRegistry()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
	}

	var pgPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pgPool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid DATABASE_URL")
		}
		defer pgPool.Close()
	}

	serverID := ids.ServerID(cfg.Cluster.ServerID)

	// --- connection registry ---
	reggy := registry.New(registry.Limits{
		MaxConnections:                cfg.WebSocket.MaxConnections,
		MaxConnectionsPerUser:         cfg.WebSocket.MaxConnectionsPerUser,
		MaxSubscriptionsPerConnection: cfg.WebSocket.MaxSubscriptionsPerConnection,
		OutboundQueueSize:             registry.DefaultOutboundQueueSize,
	})

	// --- offline queue ---
	var q queue.Queue
	if cfg.Queue.Enabled {
		qcfg := queue.Config{
			Enabled:        cfg.Queue.Enabled,
			MaxSizePerUser: cfg.Queue.MaxSizePerUser,
			MessageTTL:     time.Duration(cfg.Queue.MessageTTLSeconds) * time.Second,
			TenantID:       model.DefaultTenant,
		}
		switch cfg.Queue.Backend {
		case "redis":
			q = queue.NewRedisQueue(redisClient, cfg.Queue.RedisPrefix, qcfg, log)
		case "sql":
			q = queue.NewSQLQueue(pgPool, qcfg)
		default:
			q = queue.NewMemoryQueue(qcfg)
		}
	}

	// --- ack tracker ---
	var acks ack.Tracker
	if cfg.Ack.Enabled {
		acfg := ack.Config{
			Enabled:        cfg.Ack.Enabled,
			TimeoutSeconds: cfg.Ack.TimeoutSeconds,
			TenantID:       model.DefaultTenant,
		}
		switch cfg.Ack.Backend {
		case "redis":
			acks = ack.NewRedisTracker(redisClient, cfg.Ack.RedisPrefix, acfg)
		case "sql":
			acks = ack.NewSQLTracker(pgPool, acfg)
		default:
			hist := prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "notifyhub_ack_latency_seconds",
				Help:    "Latency between notification send and client acknowledgement.",
				Buckets: prometheus.DefBuckets,
			})
			reg.MustRegister(hist)
			acks = ack.NewMemoryTracker(acfg, hist)
		}
	}

	// --- rate limiter ---
	// Always constructed: MemoryLimiter.CheckIP/CheckKey returns
	// {Allowed:true} unconditionally when cfg.Enabled is false, so callers
	// never need to nil-check it.
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
		Enabled:       cfg.RateLimit.Enabled,
		IPCapacity:    float64(cfg.RateLimit.WSConnectionsPerMinute),
		IPRefillRate:  float64(cfg.RateLimit.WSConnectionsPerMinute) / 60.0,
		KeyCapacity:   float64(cfg.RateLimit.HTTPBurstSize),
		KeyRefillRate: cfg.RateLimit.HTTPRequestsPerSecond,
		BucketTTL:     time.Duration(cfg.RateLimit.BucketTTLSeconds) * time.Second,
	})
	defer limiter.Close()

	// --- cluster session store + router ---
	var sessionStore cluster.SessionStore
	if cfg.Cluster.Enabled {
		sessionStore = cluster.NewRedisStore(
			redisClient, cfg.Cluster.SessionPrefix, serverID,
			time.Duration(cfg.Cluster.SessionTTLSeconds)*time.Second,
			cfg.Cluster.RoutingChannel,
		)
	} else {
		sessionStore = cluster.NewLocalStore(serverID)
	}
	router := cluster.NewRouter(sessionStore, reggy, log)

	if cfg.Cluster.Enabled {
		clusterSub := cluster.NewSubscriber(redisClient, cfg.Cluster.RoutingChannel, serverID, router, log)
		go clusterSub.Run(context.Background())
	}

	// --- dispatcher ---
	dispMetrics := dispatcher.NewMetrics(reg)
	disp := dispatcher.New(reggy, q, acks, router, model.DefaultTenant, dispMetrics, log)

	// --- redis trigger bus ---
	if redisClient != nil {
		breaker := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.CircuitBreaker.SuccessThreshold,
			ResetTimeoutSeconds: cfg.CircuitBreaker.ResetTimeoutSeconds,
		})
		bo := backoff.New(backoff.Config{
			InitialDelay: time.Duration(cfg.Backoff.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Backoff.MaxDelayMs) * time.Millisecond,
			Multiplier:   cfg.Backoff.Multiplier,
			JitterFactor: cfg.Backoff.JitterFactor,
		})
		healthTracker := health.New()

		busSub := redisbus.New(
			redisClient,
			[]string{"notifyhub:trigger"},
			breaker,
			bo,
			healthTracker,
			time.Duration(cfg.CircuitBreaker.ResetTimeoutSeconds)*time.Second,
			func(ctx context.Context, target model.NotificationTarget, event model.NotificationEvent) {
				disp.Dispatch(ctx, target, event)
			},
			log,
		)
		go busSub.Run(context.Background())
	}

	// --- heartbeat / reaper ---
	hb := heartbeat.New(heartbeat.Config{
		HeartbeatInterval: time.Duration(cfg.WebSocket.HeartbeatIntervalSeconds) * time.Second,
		SweepInterval:     time.Duration(cfg.WebSocket.ConnectionTimeoutSeconds) * time.Second,
		ConnectionTimeout: time.Duration(cfg.WebSocket.ConnectionTimeoutSeconds) * time.Second,
	}, reggy, sessionStore, log)

	// --- templates + tenants ---
	templates := template.New()
	tenants := tenant.New(tenant.Config{
		Enabled:               cfg.Tenant.Enabled,
		DefaultMaxConnections: cfg.Tenant.DefaultMaxConnections,
		DefaultMaxChannels:    cfg.Tenant.DefaultMaxChannels,
	})

	// --- client message handling (ws + sse share the same callback) ---
	capi := clientapi.New(reggy, acks, log)

	identify := func(r *http.Request) (model.UserId, model.TenantId, []string, error) {
		secret := []byte(cfg.JWTSecret)
		claims, err := authn.DecodeBearer(r, secret)
		if err != nil {
			if token := r.URL.Query().Get("token"); token != "" {
				req, _ := http.NewRequest(r.Method, r.URL.String(), nil)
				req.Header.Set("Authorization", "Bearer "+token)
				claims, err = authn.DecodeBearer(req, secret)
			}
		}
		if err != nil {
			return "", "", nil, err
		}
		return model.UserId(claims.Sub), tenants.ResolveTenant(claims), claims.Roles, nil
	}

	wsHandler := ws.NewHandler(reggy, limiter, identify, capi.Handle, log)
	sseHandler := sse.NewHandler(reggy, identify, log)

	httpSrv := httpapi.New(disp, templates, sessionStore, tenants, reggy, limiter, cfg.APIKey, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/sse", sseHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", httpSrv.Handler())

	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler: mux,
	}

	broadcaster := shutdown.New(context.Background())
	go hb.Run(broadcaster.Context())

	go func() {
		log.Info().Str("addr", server.Addr).Msg("notifyhub listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh

	log.Info().Msg("shutdown requested")
	broadcaster.Shutdown(reggy, "server shutting down", nil, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
	}
}

