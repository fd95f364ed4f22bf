// Package health provides liveness and readiness probes for the record store
// service.
//
// # Endpoints
//
//   - /health: Liveness probe, always {"status": "ok"} while the process runs
//   - /ready: Readiness probe, runs the registered component checks
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("database", st.Ping)
//	checker.RegisterCheck("task_queue", queue.Healthy)
//
//	mux.HandleFunc("GET /health", checker.LivenessHandler())
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
//
// Checks run concurrently, each bounded by the check timeout. A check that
// fails or times out marks the service not ready and the readiness probe
// answers 503.
package health
