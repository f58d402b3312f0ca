// Package handlers contains health checking and reusable middleware for the
// HTTP server.
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.2.0", 2*time.Second)
//	checker.AddCheck("postgres", handlers.NewPingCheck(pool))
//	checker.AddCheck("redis", handlers.NewPingCheck(tracker))
//	checker.AddCheck("accrual", handlers.NewFreshnessCheck("accrual", lastTick, 5*time.Minute, time.Minute))
//
//	status := checker.Check(ctx)
//
// # Middleware
//
//	auth := handlers.NewTokenAuth([]string{ingestToken})
//	h := handlers.ChainHandler(
//	    ingest,
//	    handlers.RequestSizeLimitMiddleware(4<<20),
//	    auth.Middleware,
//	)
package handlers
