package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/syncjob"
)

// Mode tags how the worker drives a controller.
type Mode int

const (
	// ModeStandard means the worker orchestrates resolution and persistence.
	ModeStandard Mode = iota
	// ModeBypass means the controller's Execute does the work.
	ModeBypass
)

// String returns "standard" or "bypass".
func (m Mode) String() string {
	if m == ModeBypass {
		return "bypass"
	}
	return "standard"
}

// Resolver maps a controller reference to a Unit.
type Resolver interface {
	Resolve(ref string) (*Unit, error)
}

// Unit is a registered controller with its optional interfaces resolved.
type Unit struct {
	Ref  string
	Mode Mode

	bypass      Bypass
	single      TargetResolver
	multi       MultiTargetResolver
	updater     TargetUpdater
	afterStart  AfterStart
	beforeRelay BeforeRelay
	afterRelay  AfterRelay
	beforeSync  BeforeSync
	afterSync   AfterSync
	finished    Finished
}

// NewUnit inspects v for controller interfaces. It fails with
// docsync.ErrConfiguration when v implements neither Bypass nor a resolver.
func NewUnit(ref string, v any) (*Unit, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: controller %q is nil", docsync.ErrConfiguration, ref)
	}
	u := &Unit{Ref: ref}

	u.bypass, _ = v.(Bypass)
	u.single, _ = v.(TargetResolver)
	u.multi, _ = v.(MultiTargetResolver)
	u.updater, _ = v.(TargetUpdater)
	u.afterStart, _ = v.(AfterStart)
	u.beforeRelay, _ = v.(BeforeRelay)
	u.afterRelay, _ = v.(AfterRelay)
	u.beforeSync, _ = v.(BeforeSync)
	u.afterSync, _ = v.(AfterSync)
	u.finished, _ = v.(Finished)

	switch {
	case u.bypass != nil:
		u.Mode = ModeBypass
	case u.single != nil || u.multi != nil:
		u.Mode = ModeStandard
	default:
		return nil, fmt.Errorf("%w: controller %q implements neither Execute nor a target resolver (%T)",
			docsync.ErrConfiguration, ref, v)
	}
	return u, nil
}

// Execute runs a bypass controller.
func (u *Unit) Execute(ctx context.Context, j *syncjob.Job, source *document.Record) (*Result, error) {
	if u.bypass == nil {
		return nil, fmt.Errorf("%w: controller %q has no Execute", docsync.ErrConfiguration, u.Ref)
	}
	return u.bypass.Execute(ctx, j, source)
}

// ResolveTargets returns the controller's targets. The multi-target
// resolver is preferred; a single resolver yields zero or one target.
func (u *Unit) ResolveTargets(ctx context.Context, j *syncjob.Job, source *document.Record) ([]Target, error) {
	if u.multi != nil {
		return u.multi.GetMultipleTargetDocuments(ctx, j, source)
	}
	if u.single == nil {
		return nil, fmt.Errorf("%w: controller %q has no target resolver", docsync.ErrConfiguration, u.Ref)
	}
	t, err := u.single.GetTargetDocument(ctx, j, source)
	if err != nil || t == nil {
		return nil, err
	}
	return []Target{*t}, nil
}

// HasUpdater reports whether the controller can mutate targets.
func (u *Unit) HasUpdater() bool { return u.updater != nil }

// UpdateTarget calls UpdateTargetDoc.
func (u *Unit) UpdateTarget(ctx context.Context, j *syncjob.Job, source, target *document.Record) error {
	if u.updater == nil {
		return fmt.Errorf("%w: controller %q has no UpdateTargetDoc", docsync.ErrConfiguration, u.Ref)
	}
	return u.updater.UpdateTargetDoc(ctx, j, source, target)
}

// AfterStart calls the hook if implemented.
func (u *Unit) AfterStart(ctx context.Context, j *syncjob.Job, source *document.Record) error {
	if u.afterStart == nil {
		return nil
	}
	return u.afterStart.AfterStart(ctx, j, source)
}

// BeforeRelay calls the hook if implemented.
func (u *Unit) BeforeRelay(ctx context.Context, j *syncjob.Job, source *document.Record, targets []Target) error {
	if u.beforeRelay == nil {
		return nil
	}
	return u.beforeRelay.BeforeRelay(ctx, j, source, targets)
}

// AfterRelay calls the hook if implemented.
func (u *Unit) AfterRelay(ctx context.Context, j *syncjob.Job, source *document.Record, children []*syncjob.Job) error {
	if u.afterRelay == nil {
		return nil
	}
	return u.afterRelay.AfterRelay(ctx, j, source, children)
}

// BeforeSync calls the hook if implemented.
func (u *Unit) BeforeSync(ctx context.Context, j *syncjob.Job, source, target *document.Record) error {
	if u.beforeSync == nil {
		return nil
	}
	return u.beforeSync.BeforeSync(ctx, j, source, target)
}

// AfterSync calls the hook if implemented.
func (u *Unit) AfterSync(ctx context.Context, j *syncjob.Job, source, target *document.Record) error {
	if u.afterSync == nil {
		return nil
	}
	return u.afterSync.AfterSync(ctx, j, source, target)
}

// Finished calls the hook if implemented.
func (u *Unit) Finished(ctx context.Context, j *syncjob.Job, source, target *document.Record) error {
	if u.finished == nil {
		return nil
	}
	return u.finished.Finished(ctx, j, source, target)
}

// Registry maps controller references to units. It is safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*Unit
}

var _ Resolver = (*Registry)(nil)

// NewRegistry creates an empty controller registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

// Register adds v under ref, replacing any previous controller.
func (r *Registry) Register(ref string, v any) error {
	if ref == "" {
		return fmt.Errorf("%w: empty controller reference", docsync.ErrConfiguration)
	}
	u, err := NewUnit(ref, v)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[ref] = u
	return nil
}

// Resolve returns the unit for ref or docsync.ErrConfiguration.
func (r *Registry) Resolve(ref string) (*Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[ref]
	if !ok {
		return nil, fmt.Errorf("%w: no controller registered for %q", docsync.ErrConfiguration, ref)
	}
	return u, nil
}

// Refs returns the registered references in sorted order.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.units))
	for ref := range r.units {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}
