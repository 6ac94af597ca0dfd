// Package health tracks the health of caches and the process that hosts them.
//
// A Status is one of three states:
//   - healthy: operating normally
//   - degraded: serving reads, but new keys are being turned away
//   - unhealthy: not serving, for example after Close
//
// A Monitor holds named components. Components registered with a CheckFunc are
// evaluated on every read, so the reported state is always current:
//
//	monitor := health.NewMonitor()
//	monitor.Register("sessions", sessions.Health)
//	monitor.UpdateHealthy("workload", "running")
//
//	system := monitor.AggregateHealth("eidetic")
//	if system.IsUnhealthy() {
//		log.Printf("unhealthy: %s", system.Message)
//	}
//
// Aggregation is hierarchical. Any unhealthy component makes the system
// unhealthy, otherwise any degraded component makes it degraded.
//
// All Monitor operations are safe for concurrent use. Checks run without the
// monitor lock held.
package health
