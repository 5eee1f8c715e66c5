// Package worker runs sync jobs. An [Executor] claims one job and drives
// its controller through the middleware chain, a [Pool] consumes queues
// with concurrent goroutines, and a [Sweeper] recovers jobs whose queue
// message was never delivered.
package worker
