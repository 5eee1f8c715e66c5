package streamhook

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc builds a custom payload for a specific event type. It
// receives the default payload and its result replaces it.
type PayloadFunc func(defaultPayload any) (any, error)

// WithEvents restricts the extension to the listed event types. By default
// every event type is published. Unknown types are ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc registers a custom payload builder for eventType.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}
