package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/chairup/chairup/libs/config"
	"github.com/chairup/chairup/libs/grpcx"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthService = "chairup.booking.v1.Booking"

// startHealthServer exposes the standard gRPC health service. Its status
// follows the store's readiness.
func startHealthServer(ctx context.Context, logger *slog.Logger, ready func(context.Context) error) error {
	port, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}

	srv := grpcx.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	if _, err := grpcx.Serve(ctx, logger, srv, ":"+port); err != nil {
		return err
	}

	go trackReadiness(ctx, logger, hs, ready, config.Seconds("GRPC_HEALTH_INTERVAL_SECONDS", 10*time.Second))
	return nil
}

func trackReadiness(ctx context.Context, logger *slog.Logger, hs *health.Server, ready func(context.Context) error, every time.Duration) {
	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := ready(checkCtx)
		cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("store not ready", "err", err)
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(healthService, status)
	}

	update()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
