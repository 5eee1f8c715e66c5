package syncjob

import (
	"fmt"
	"time"

	"github.com/xraph/docsync"
)

// BackoffPolicy selects how the retry delay grows between attempts.
type BackoffPolicy string

const (
	// BackoffConstant waits RetryDelay before every retry.
	BackoffConstant BackoffPolicy = "constant"
	// BackoffLinear waits RetryDelay × attempt.
	BackoffLinear BackoffPolicy = "linear"
	// BackoffExponential doubles the delay after each attempt.
	BackoffExponential BackoffPolicy = "exponential"
)

// DefaultQueue is the queue used by types that do not name one.
const DefaultQueue = "default"

// DefaultTimeout bounds a controller invocation when the type sets none.
const DefaultTimeout = 5 * time.Minute

// Type configures a kind of sync: which controller runs it, where its jobs
// are queued, and how failures are retried.
type Type struct {
	docsync.Entity `yaml:"-" toml:"-"`

	Name       string `json:"name" yaml:"name" toml:"name"`
	SourceType string `json:"source_document_type" yaml:"source_document_type" toml:"source_document_type"`
	// TargetType may be empty when the controller resolves it dynamically.
	TargetType    string `json:"target_document_type,omitempty" yaml:"target_document_type" toml:"target_document_type"`
	ControllerRef string `json:"controller" yaml:"controller" toml:"controller"`
	Queue         string `json:"queue" yaml:"queue" toml:"queue"`

	TimeoutSeconds    int           `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	RetryDelaySeconds int           `json:"retry_delay_seconds" yaml:"retry_delay_seconds" toml:"retry_delay_seconds"`
	MaxRetries        int           `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	Backoff           BackoffPolicy `json:"backoff" yaml:"backoff" toml:"backoff"`
	VerboseLogging    bool          `json:"verbose_logging" yaml:"verbose_logging" toml:"verbose_logging"`

	InsertEnabled               bool `json:"insert_enabled" yaml:"insert_enabled" toml:"insert_enabled"`
	UpdateEnabled               bool `json:"update_enabled" yaml:"update_enabled" toml:"update_enabled"`
	DeleteEnabled               bool `json:"delete_enabled" yaml:"delete_enabled" toml:"delete_enabled"`
	UpdateWithoutChangesEnabled bool `json:"update_without_changes_enabled" yaml:"update_without_changes_enabled" toml:"update_without_changes_enabled"`

	Disabled bool `json:"disabled" yaml:"disabled" toml:"disabled"`
}

// NewType returns a type with default queue, timeout and backoff and with
// insert, update and delete enabled. Decoders should start from NewType so
// that omitted flags keep these defaults.
func NewType(name string) *Type {
	return &Type{
		Entity:         docsync.NewEntity(),
		Name:           name,
		Queue:          DefaultQueue,
		TimeoutSeconds: int(DefaultTimeout / time.Second),
		Backoff:        BackoffConstant,
		InsertEnabled:  true,
		UpdateEnabled:  true,
		DeleteEnabled:  true,
	}
}

// Timeout returns the controller invocation budget.
func (t *Type) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base delay between retries.
func (t *Type) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelaySeconds) * time.Second
}

// Validate checks required fields and fills the queue and backoff defaults.
// Failures wrap docsync.ErrConfiguration.
func (t *Type) Validate() error {
	switch {
	case t.Name == "":
		return fmt.Errorf("%w: sync job type name is required", docsync.ErrConfiguration)
	case t.SourceType == "":
		return fmt.Errorf("%w: type %q: source document type is required", docsync.ErrConfiguration, t.Name)
	case t.ControllerRef == "":
		return fmt.Errorf("%w: type %q: controller is required", docsync.ErrConfiguration, t.Name)
	case t.TimeoutSeconds < 0, t.RetryDelaySeconds < 0, t.MaxRetries < 0:
		return fmt.Errorf("%w: type %q: timeout, retry delay and max retries must not be negative", docsync.ErrConfiguration, t.Name)
	}

	if t.Queue == "" {
		t.Queue = DefaultQueue
	}
	switch t.Backoff {
	case "":
		t.Backoff = BackoffConstant
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("%w: type %q: unknown backoff policy %q", docsync.ErrConfiguration, t.Name, t.Backoff)
	}
	return nil
}
