package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/slotwatch/internal/health"
)

// GRPCHealthService is the service name reported alongside the overall ("") status.
const GRPCHealthService = "slotwatch"

// GRPCHealth serves the standard grpc.health.v1 protocol, mirroring the
// component health monitor.
type GRPCHealth struct {
	server *grpc.Server
	health *grpchealth.Server
}

// NewGRPCHealth creates the gRPC health server and subscribes it to monitor.
func NewGRPCHealth(monitor *health.Monitor) *GRPCHealth {
	g := &GRPCHealth{
		server: grpc.NewServer(),
		health: grpchealth.NewServer(),
	}
	healthpb.RegisterHealthServer(g.server, g.health)

	g.set(monitor.Overall())
	monitor.OnChange(g.set)
	return g
}

func (g *GRPCHealth) set(s health.Status) {
	status := servingStatus(s)
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(GRPCHealthService, status)
}

// servingStatus maps component health to gRPC serving status. Degraded still
// serves: the bot keeps working while one chat's portal login fails.
func servingStatus(s health.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch s {
	case health.Healthy, health.Degraded:
		return healthpb.HealthCheckResponse_SERVING
	case health.Unhealthy:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_UNKNOWN
	}
}

// Serve accepts connections on lis until ctx is canceled.
func (g *GRPCHealth) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		g.health.Shutdown()
		g.server.GracefulStop()
	}()

	slog.Info("gRPC health listening", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}
