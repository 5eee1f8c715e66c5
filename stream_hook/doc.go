// Package streamhook publishes sync job lifecycle events to a Redis stream
// so other services can react to finished, failed or relayed syncs without
// polling the job store.
//
// Usage:
//
//	pub := streamhook.NewRedisPublisher(client, "docsync:events")
//	eng, _ := engine.Build(s, engine.WithExtension(streamhook.New(pub)))
//
// Consumers read the stream with XREAD or a consumer group. Each entry has
// a "type" field holding the event type and a "data" field holding the
// JSON payload.
//
// To restrict which events are published:
//
//	streamhook.New(pub,
//	    streamhook.WithEvents(
//	        streamhook.EventJobFinished,
//	        streamhook.EventJobFailed,
//	    ),
//	)
package streamhook
