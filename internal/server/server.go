// Package server runs the gRPC health endpoint of the market. The market is
// reported SERVING while its clock keeps ticking.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	tomb "gopkg.in/tomb.v2"
)

// ServiceName is the health service name clients may query besides the
// overall server status ("").
const ServiceName = "bourse.Market"

// missedBeats is how many tick intervals may pass without a completed tick
// before the market is reported NOT_SERVING.
const missedBeats = 3

// Heartbeater reports when the market clock last completed a tick.
type Heartbeater interface {
	Heartbeat() time.Time
	Interval() time.Duration
}

type Server struct {
	clock   Heartbeater
	health  *health.Server
	started time.Time
	now     func() time.Time
}

func NewServer(clock Heartbeater) *Server {
	return &Server{
		clock:   clock,
		health:  health.NewServer(),
		started: time.Now(),
		now:     time.Now,
	}
}

// Healthy returns nil while the last tick is younger than three intervals.
// Before the first tick the process start time stands in for it.
func (s *Server) Healthy() error {
	last := s.clock.Heartbeat()
	if last.IsZero() {
		last = s.started
	}
	limit := missedBeats * s.clock.Interval()
	if age := s.now().Sub(last); age > limit {
		return fmt.Errorf("market clock stalled: last tick %s ago", age.Round(time.Millisecond))
	}
	return nil
}

// refresh pushes the current health into the gRPC health service.
func (s *Server) refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.Healthy(); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		log.Warn().Err(err).Msg("market unhealthy")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Check answers a health probe in-process, as a gRPC client would see it.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	s.refresh()
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Run serves gRPC on address until the tomb starts dying.
func (s *Server) Run(t *tomb.Tomb, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(t, listener)
}

func (s *Server) Serve(t *tomb.Tomb, listener net.Listener) error {
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)
	s.refresh()

	t.Go(func() error {
		ticker := time.NewTicker(s.clock.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-t.Dying():
				s.health.Shutdown()
				grpcServer.GracefulStop()
				return nil
			case <-ticker.C:
				s.refresh()
			}
		}
	})

	log.Info().Str("address", listener.Addr().String()).Msg("grpc health server listening")
	return grpcServer.Serve(listener)
}
