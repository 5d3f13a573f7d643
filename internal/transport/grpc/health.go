package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check name reported alongside the overall "" entry.
const ServiceName = "agenda.v1.Scheduling"

// Probe checks one dependency. A nil error means the dependency is usable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthServer publishes grpc.health.v1 status derived from dependency probes.
type HealthServer struct {
	srv    *health.Server
	probes []Probe
	log    zerolog.Logger

	mu       sync.Mutex
	failures map[string]string
}

func NewHealthServer(log zerolog.Logger, probes ...Probe) *HealthServer {
	h := &HealthServer{
		srv:      health.NewServer(),
		probes:   probes,
		log:      log.With().Str("component", "grpc.health").Logger(),
		failures: make(map[string]string),
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Check runs every probe once and updates the published status. It returns
// true when all probes pass.
func (h *HealthServer) Check(ctx context.Context) bool {
	ok := true
	for _, p := range h.probes {
		err := p.Check(ctx)
		h.record(p.Name, err)
		if err != nil {
			ok = false
		}
	}
	if ok {
		h.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

// Ready runs the probes and returns the first failure, for HTTP readiness.
func (h *HealthServer) Ready(ctx context.Context) error {
	for _, p := range h.probes {
		if err := p.Check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run re-checks the probes every interval until ctx is done.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	check := func() {
		cctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		h.Check(cctx)
	}
	check()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before the listener closes.
func (h *HealthServer) Shutdown() {
	h.srv.Shutdown()
}

func (h *HealthServer) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
}

// record logs probe transitions only, not every tick.
func (h *HealthServer) record(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, failing := h.failures[name]
	switch {
	case err != nil && (!failing || prev != err.Error()):
		h.failures[name] = err.Error()
		h.log.Warn().Err(err).Str("probe", name).Msg("dependency unhealthy")
	case err == nil && failing:
		delete(h.failures, name)
		h.log.Info().Str("probe", name).Msg("dependency recovered")
	}
}
