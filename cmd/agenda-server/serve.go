package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"agenda/backend/internal/config"
	"agenda/backend/internal/notify"
	"agenda/backend/internal/service/scheduling"
	"agenda/backend/internal/store"
	"agenda/backend/internal/store/memory"
	"agenda/backend/internal/store/postgres"
	grpcTransport "agenda/backend/internal/transport/grpc"
	"agenda/backend/internal/transport/httpapi"
)

func serveCmd() *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and gRPC health servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed-doctors", "", "JSON file of doctors to load into the in-memory store")
	return cmd
}

func runServer(seedPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	if cfg.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	policy, err := schedulingPolicy(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("grpc_addr", cfg.GRPCAddr).
		Str("block_policy", string(policy.BlockPolicy)).
		Bool("enforce_working_hours", policy.EnforceWorkingHours).
		Msg("starting")

	repo, err := openStore(ctx, cfg, seedPath, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	probes := []grpcTransport.Probe{{Name: "store", Check: repo.Ping}}

	var notifier scheduling.Notifier
	if brokers := notify.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kn := notify.NewKafkaNotifier(brokers, cfg.KafkaTopic, log)
		defer func() {
			if err := kn.Close(); err != nil {
				log.Warn().Err(err).Msg("kafka writer close failed")
			}
		}()
		notifier = kn
		probes = append(probes, grpcTransport.Probe{Name: "kafka", Check: notify.ReadyCheck(brokers)})
		log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing booking events to kafka")
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := scheduling.NewService(repo,
		scheduling.WithPolicy(policy),
		scheduling.WithNotifier(notifier),
		scheduling.WithLogger(log),
		scheduling.WithMetrics(scheduling.NewMetrics(reg)),
	)

	health := grpcTransport.NewHealthServer(log, probes...)
	go health.Run(ctx, cfg.HealthInterval)

	e := httpapi.NewRouter(svc, httpapi.Config{
		JWTSecret: []byte(cfg.JWTSecret),
		Limiter:   limiter,
		Ready:     health.Ready,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:    log,
	})

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcTransport.DefaultRequestTimeout(cfg.GRPCRequestTimeout),
		grpcTransport.Logging(log.With().Str("component", "grpc").Logger()),
	))
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Msg("servers started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error().Err(err).Msg("server stopped with error")
			shutdown(log, e, grpcServer, health, cfg.ShutdownTimeout)
			return err
		}
	}
	shutdown(log, e, grpcServer, health, cfg.ShutdownTimeout)
	return nil
}

func schedulingPolicy(cfg config.Config) (scheduling.Policy, error) {
	bp, err := scheduling.ParseBlockPolicy(cfg.BlockPolicy)
	if err != nil {
		return scheduling.Policy{}, err
	}
	return scheduling.Policy{
		BlockPolicy:         bp,
		EnforceWorkingHours: cfg.EnforceWorkingHours,
		DefaultDuration:     cfg.DefaultDuration,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, seedPath string, log zerolog.Logger) (store.ScheduleRepository, error) {
	if cfg.DatabaseURL == "" {
		st := memory.NewScheduleStore()
		n, err := seedDoctors(st, seedPath)
		if err != nil {
			return nil, err
		}
		log.Warn().Int("doctors", n).Msg("database.url not set; using in-memory store")
		return st, nil
	}

	fields := databaseFields(cfg.DatabaseURL)
	log.Info().Fields(fields).Msg("connecting to database")
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		ConnectTimeout:  cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Error().Err(err).Fields(fields).Msg("database connection failed")
		return nil, err
	}
	if cfg.DBAutoMigrate {
		group, err := postgres.MigrateUp(ctx, db)
		if err != nil {
			_ = postgres.Close(db)
			return nil, err
		}
		log.Info().Str("group", group.String()).Msg("migrations applied")
	}
	return postgres.NewScheduleRepo(db), nil
}

func newLimiter(ctx context.Context, cfg config.Config, log zerolog.Logger) (httpapi.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		l := httpapi.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go l.Run(ctx, time.Minute)
		return l, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opts)
	log.Info().Str("redis_addr", opts.Addr).Msg("using shared rate limiter")

	limit := cfg.RateLimitBurst
	if rps := int(cfg.RateLimitRPS); rps > limit {
		limit = rps
	}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	return httpapi.NewRedisLimiter(rdb, limit, time.Second, "agenda:rl"), closeFn, nil
}

func shutdown(log zerolog.Logger, e interface{ Shutdown(context.Context) error }, s *grpc.Server, health *grpcTransport.HealthServer, timeout time.Duration) {
	log.Info().Dur("timeout", timeout).Msg("shutting down")
	health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("grpc server stopped")
	case <-ctx.Done():
		log.Warn().Msg("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
