package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"credential-lifecycle/backend/internal/logging"
)

// checkTimeout bounds each dependency ping.
const checkTimeout = 2 * time.Second

// Pinger is a readiness check for one dependency (key-value store, database, broker).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger, e.g. (*sql.DB).PingContext.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server implements grpc.health.v1.Health for readiness. It reports SERVING only when every
// registered dependency answers its ping. The same checks back the HTTP /readyz route.
type Server struct {
	healthpb.UnimplementedHealthServer
	deps map[string]Pinger
	log  logging.Logger
}

// NewServer returns a health server over deps. Nil pingers are skipped.
func NewServer(deps map[string]Pinger, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	clean := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			clean[name] = p
		}
	}
	return &Server{deps: clean, log: log}
}

// Check pings every dependency. A failed ping yields NOT_SERVING, never a gRPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if failed := s.failing(ctx); len(failed) > 0 {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Ready is the fiber handler for GET /readyz: 200 when all dependencies answer, 503 listing the
// failing ones otherwise.
func (s *Server) Ready(c *fiber.Ctx) error {
	failed := s.failing(c.UserContext())
	if len(failed) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_serving", "failed": failed})
	}
	return c.JSON(fiber.Map{"status": "serving"})
}

// failing returns the sorted names of dependencies whose ping failed.
func (s *Server) failing(ctx context.Context) []string {
	var failed []string
	for name, p := range s.deps {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			s.log.Warn(ctx, "readiness check failed", "dependency", name, "error", err)
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}
