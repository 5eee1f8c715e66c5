// Package engine wires the docsync subsystems together and provides the
// application-level API: registering controllers, managing sync job types,
// enqueuing and canceling jobs, and running the worker pool.
//
// The engine package exists to break an import cycle: the root docsync
// package defines Entity and the sentinel errors used by every subsystem
// and therefore cannot import them back. Engine sits above the subsystem
// packages and below the application layer.
//
// # Building an Engine
//
//	s, err := docsync.New(
//	    docsync.WithStore(pgStore),
//	    docsync.WithQueue(redisQueue),
//	    docsync.WithConcurrency(8),
//	)
//
//	eng, err := engine.Build(s,
//	    engine.WithAccessor(accessor),
//	    engine.WithExtension(auditExtension),
//	    engine.WithQueueConfig(queue.Config{Name: "erp", RateLimit: 20}),
//	)
//
// # Registering and enqueuing
//
//	eng.RegisterController("order-to-invoice", OrderToInvoice{})
//	eng.CreateType(ctx, typ)
//	job, err := eng.Enqueue(ctx, enqueue.Request{
//	    Type:               "order-to-invoice",
//	    SourceDocumentName: "O-1",
//	})
//
// The field mapping controller is registered under fieldmap.Ref.
//
// # Options
//
//   - [WithAccessor] sets the document accessor (required)
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds middleware to the execution chain
//   - [WithControllerRegistry] shares a controller registry
//   - [WithQueueConfig] configures per-queue rate limits and concurrency
//   - [WithTracerProvider] sets the OpenTelemetry tracer provider
//   - [WithMeterProvider] sets the OpenTelemetry meter provider
package engine
