package mongo

import (
	"bytes"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

type typeModel struct {
	Name                        string    `bson:"_id"`
	SourceType                  string    `bson:"source_document_type"`
	TargetType                  string    `bson:"target_document_type"`
	ControllerRef               string    `bson:"controller"`
	Queue                       string    `bson:"queue"`
	TimeoutSeconds              int       `bson:"timeout_seconds"`
	RetryDelaySeconds           int       `bson:"retry_delay_seconds"`
	MaxRetries                  int       `bson:"max_retries"`
	Backoff                     string    `bson:"backoff"`
	VerboseLogging              bool      `bson:"verbose_logging"`
	InsertEnabled               bool      `bson:"insert_enabled"`
	UpdateEnabled               bool      `bson:"update_enabled"`
	DeleteEnabled               bool      `bson:"delete_enabled"`
	UpdateWithoutChangesEnabled bool      `bson:"update_without_changes_enabled"`
	Disabled                    bool      `bson:"disabled"`
	CreatedAt                   time.Time `bson:"created_at"`
	UpdatedAt                   time.Time `bson:"updated_at"`
}

func toTypeModel(t *syncjob.Type) *typeModel {
	return &typeModel{
		Name:                        t.Name,
		SourceType:                  t.SourceType,
		TargetType:                  t.TargetType,
		ControllerRef:               t.ControllerRef,
		Queue:                       t.Queue,
		TimeoutSeconds:              t.TimeoutSeconds,
		RetryDelaySeconds:           t.RetryDelaySeconds,
		MaxRetries:                  t.MaxRetries,
		Backoff:                     string(t.Backoff),
		VerboseLogging:              t.VerboseLogging,
		InsertEnabled:               t.InsertEnabled,
		UpdateEnabled:               t.UpdateEnabled,
		DeleteEnabled:               t.DeleteEnabled,
		UpdateWithoutChangesEnabled: t.UpdateWithoutChangesEnabled,
		Disabled:                    t.Disabled,
		CreatedAt:                   t.CreatedAt,
		UpdatedAt:                   t.UpdatedAt,
	}
}

func fromTypeModel(m *typeModel) *syncjob.Type {
	return &syncjob.Type{
		Entity: docsync.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		Name:                        m.Name,
		SourceType:                  m.SourceType,
		TargetType:                  m.TargetType,
		ControllerRef:               m.ControllerRef,
		Queue:                       m.Queue,
		TimeoutSeconds:              m.TimeoutSeconds,
		RetryDelaySeconds:           m.RetryDelaySeconds,
		MaxRetries:                  m.MaxRetries,
		Backoff:                     syncjob.BackoffPolicy(m.Backoff),
		VerboseLogging:              m.VerboseLogging,
		InsertEnabled:               m.InsertEnabled,
		UpdateEnabled:               m.UpdateEnabled,
		DeleteEnabled:               m.DeleteEnabled,
		UpdateWithoutChangesEnabled: m.UpdateWithoutChangesEnabled,
		Disabled:                    m.Disabled,
	}
}

// jobModel keeps the free-form maps as raw BSON documents so they can be
// decoded with plain Go map and slice types.
type jobModel struct {
	ID                          string     `bson:"_id"`
	Type                        string     `bson:"sync_job_type"`
	Queue                       string     `bson:"queue"`
	Status                      string     `bson:"status"`
	SourceDocumentType          string     `bson:"source_document_type"`
	SourceDocumentName          string     `bson:"source_document_name"`
	TargetDocumentType          string     `bson:"target_document_type"`
	TargetDocumentName          string     `bson:"target_document_name"`
	ParentJob                   string     `bson:"parent_job,omitempty"`
	Context                     bson.Raw   `bson:"context,omitempty"`
	TriggerRef                  string     `bson:"trigger_ref"`
	Operation                   string     `bson:"operation"`
	Diff                        bson.Raw   `bson:"diff,omitempty"`
	ErrorMessage                string     `bson:"error_message"`
	RetryCount                  int        `bson:"retry_count"`
	Attempts                    int        `bson:"attempts"`
	DryRun                      bool       `bson:"dry_run"`
	InsertEnabled               bool       `bson:"insert_enabled"`
	UpdateEnabled               bool       `bson:"update_enabled"`
	DeleteEnabled               bool       `bson:"delete_enabled"`
	UpdateWithoutChangesEnabled bool       `bson:"update_without_changes_enabled"`
	SourceSnapshot              bson.Raw   `bson:"source_snapshot,omitempty"`
	TargetSnapshot              bson.Raw   `bson:"target_snapshot,omitempty"`
	StartedAt                   *time.Time `bson:"started_at,omitempty"`
	FinishedAt                  *time.Time `bson:"finished_at,omitempty"`
	RetryAt                     *time.Time `bson:"retry_at,omitempty"`
	CreatedAt                   time.Time  `bson:"created_at"`
	UpdatedAt                   time.Time  `bson:"updated_at"`
}

type changeModel struct {
	Field string `bson:"field"`
	Old   any    `bson:"old,omitempty"`
	New   any    `bson:"new,omitempty"`
}

type diffModel struct {
	Changes []changeModel `bson:"changes"`
}

func toJobModel(j *syncjob.Job) (*jobModel, error) {
	m := &jobModel{
		ID:                          j.ID.String(),
		Type:                        j.Type,
		Queue:                       j.Queue,
		Status:                      string(j.Status),
		SourceDocumentType:          j.SourceDocumentType,
		SourceDocumentName:          j.SourceDocumentName,
		TargetDocumentType:          j.TargetDocumentType,
		TargetDocumentName:          j.TargetDocumentName,
		TriggerRef:                  j.TriggerRef,
		Operation:                   string(j.Operation),
		ErrorMessage:                j.ErrorMessage,
		RetryCount:                  j.RetryCount,
		Attempts:                    j.Attempts,
		DryRun:                      j.DryRun,
		InsertEnabled:               j.InsertEnabled,
		UpdateEnabled:               j.UpdateEnabled,
		DeleteEnabled:               j.DeleteEnabled,
		UpdateWithoutChangesEnabled: j.UpdateWithoutChangesEnabled,
		StartedAt:                   j.StartedAt,
		FinishedAt:                  j.FinishedAt,
		RetryAt:                     j.RetryAt,
		CreatedAt:                   j.CreatedAt,
		UpdatedAt:                   j.UpdatedAt,
	}
	if !j.ParentJob.IsNil() {
		m.ParentJob = j.ParentJob.String()
	}

	var err error
	if m.Context, err = rawDoc(j.Context); err != nil {
		return nil, err
	}
	if m.SourceSnapshot, err = rawDoc(j.SourceSnapshot); err != nil {
		return nil, err
	}
	if m.TargetSnapshot, err = rawDoc(j.TargetSnapshot); err != nil {
		return nil, err
	}
	if !j.Diff.IsEmpty() {
		d := diffModel{Changes: make([]changeModel, len(j.Diff.Changes))}
		for i, c := range j.Diff.Changes {
			d.Changes[i] = changeModel(c)
		}
		if m.Diff, err = bson.Marshal(d); err != nil {
			return nil, fmt.Errorf("docsync/mongo: encode diff: %w", err)
		}
	}
	return m, nil
}

func fromJobModel(m *jobModel) (*syncjob.Job, error) {
	jobID, err := id.ParseSyncJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("docsync/mongo: parse job id %q: %w", m.ID, err)
	}
	j := &syncjob.Job{
		Entity: docsync.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:                          jobID,
		Type:                        m.Type,
		Queue:                       m.Queue,
		Status:                      syncjob.Status(m.Status),
		SourceDocumentType:          m.SourceDocumentType,
		SourceDocumentName:          m.SourceDocumentName,
		TargetDocumentType:          m.TargetDocumentType,
		TargetDocumentName:          m.TargetDocumentName,
		TriggerRef:                  m.TriggerRef,
		Operation:                   document.Operation(m.Operation),
		ErrorMessage:                m.ErrorMessage,
		RetryCount:                  m.RetryCount,
		Attempts:                    m.Attempts,
		DryRun:                      m.DryRun,
		InsertEnabled:               m.InsertEnabled,
		UpdateEnabled:               m.UpdateEnabled,
		DeleteEnabled:               m.DeleteEnabled,
		UpdateWithoutChangesEnabled: m.UpdateWithoutChangesEnabled,
		StartedAt:                   utcPtr(m.StartedAt),
		FinishedAt:                  utcPtr(m.FinishedAt),
		RetryAt:                     utcPtr(m.RetryAt),
	}
	if m.ParentJob != "" {
		if j.ParentJob, err = id.ParseSyncJobID(m.ParentJob); err != nil {
			return nil, fmt.Errorf("docsync/mongo: parse parent job id %q: %w", m.ParentJob, err)
		}
	}

	if j.Context, err = decodeDoc(m.Context); err != nil {
		return nil, err
	}
	if j.SourceSnapshot, err = decodeDoc(m.SourceSnapshot); err != nil {
		return nil, err
	}
	if j.TargetSnapshot, err = decodeDoc(m.TargetSnapshot); err != nil {
		return nil, err
	}
	if len(m.Diff) > 0 {
		doc, err := decodeDoc(m.Diff)
		if err != nil {
			return nil, err
		}
		changes, _ := doc["changes"].([]any)
		for _, c := range changes {
			fields, _ := c.(map[string]any)
			field, _ := fields["field"].(string)
			j.Diff.Changes = append(j.Diff.Changes, document.Change{
				Field: field,
				Old:   fields["old"],
				New:   fields["new"],
			})
		}
	}
	return j, nil
}

// rawDoc encodes a free-form map; nil stays absent.
func rawDoc(v map[string]any) (bson.Raw, error) {
	if v == nil {
		return nil, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docsync/mongo: encode document: %w", err)
	}
	return data, nil
}

// decodeDoc decodes a raw document into map[string]any, converting nested
// documents and arrays to plain maps and slices.
func decodeDoc(raw bson.Raw) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.DefaultDocumentM()
	var m bson.M
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("docsync/mongo: decode document: %w", err)
	}
	return plain(m).(map[string]any), nil
}

func plain(v any) any {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.DateTime:
		return x.Time().UTC()
	default:
		return v
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
