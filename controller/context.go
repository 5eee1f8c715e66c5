package controller

import (
	"encoding/json"
	"fmt"
	"maps"
)

// DecodeContext converts a job context into T by round-tripping it through
// JSON, so struct tags decide the field mapping.
func DecodeContext[T any](ctx map[string]any) (T, error) {
	var out T
	if len(ctx) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return out, fmt.Errorf("controller: encode context: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("controller: decode context into %T: %w", out, err)
	}
	return out, nil
}

// NormalizeContext round-trips ctx through JSON so that stored and
// in-memory contexts hold the same value shapes (float64 numbers, []any,
// map[string]any).
func NormalizeContext(ctx map[string]any) (map[string]any, error) {
	if ctx == nil {
		return nil, nil
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("controller: context is not JSON serializable: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("controller: normalize context: %w", err)
	}
	return out, nil
}

// MergeContext returns base overlaid by overlay. Overlay keys win.
func MergeContext(base, overlay map[string]any) map[string]any {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	maps.Copy(out, overlay)
	return out
}
