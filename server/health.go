package server

import (
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/chazu/enigma/vm"
)

// startHealthWatcher keeps the health status in line with the pool: SERVING
// while its workers run, NOT_SERVING otherwise. Returns a stop function.
func (s *ObserverServer) startHealthWatcher(pool *vm.Pool, interval time.Duration) func() {
	update := func() {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if pool.Stats().Running {
			status = healthpb.HealthCheckResponse_SERVING
		}
		s.health.SetServingStatus("", status)
		s.health.SetServingStatus(ObserverServiceName, status)
	}
	update()

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				update()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
