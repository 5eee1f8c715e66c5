// Package fieldmap provides a standard controller that copies source fields
// onto a target document according to a mapping carried in the job context.
//
// Recognized context keys:
//
//	target_document_type  target type (required unless targets is set)
//	target_document_name  target name; empty means insert a new record
//	operation             insert, update or delete (default: update, or
//	                      insert when no target name is given)
//	field_map             {"source_field": "target_field", ...}
//	targets               list of {document_type, document_name, operation,
//	                      context} entries; more than one triggers relay
//	force_update          save even when the mapping changes nothing
package fieldmap

import (
	"context"
	"fmt"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/syncjob"
)

// Ref is the reference the engine registers this controller under.
const Ref = "fieldmap"

// Params is the typed view of the job context.
type Params struct {
	TargetDocumentType string              `json:"target_document_type"`
	TargetDocumentName string              `json:"target_document_name"`
	Operation          document.Operation  `json:"operation"`
	FieldMap           map[string]string   `json:"field_map"`
	Targets            []controller.Target `json:"targets"`
	ForceUpdate        bool                `json:"force_update"`
}

// Controller is the field mapping controller. The zero value is ready to use.
type Controller struct{}

var (
	_ controller.MultiTargetResolver = Controller{}
	_ controller.TargetUpdater       = Controller{}
	_ controller.BeforeSync          = Controller{}
)

// GetMultipleTargetDocuments returns the context's targets list, or the
// single target named by target_document_type and target_document_name.
func (Controller) GetMultipleTargetDocuments(_ context.Context, j *syncjob.Job, _ *document.Record) ([]controller.Target, error) {
	p, err := controller.DecodeContext[Params](j.Context)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docsync.ErrConfiguration, err)
	}
	if len(p.Targets) > 0 {
		return p.Targets, nil
	}
	if p.TargetDocumentType == "" {
		return nil, nil
	}

	op := p.Operation
	if op == "" {
		op = document.OpUpdate
		if p.TargetDocumentName == "" {
			op = document.OpInsert
		}
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: unknown operation %q", docsync.ErrConfiguration, op)
	}
	return []controller.Target{{
		DocumentType: p.TargetDocumentType,
		DocumentName: p.TargetDocumentName,
		Operation:    op,
	}}, nil
}

// BeforeSync turns on UpdateWithoutChangesEnabled when force_update is set.
func (Controller) BeforeSync(_ context.Context, j *syncjob.Job, _, _ *document.Record) error {
	p, err := controller.DecodeContext[Params](j.Context)
	if err != nil {
		return fmt.Errorf("%w: %v", docsync.ErrConfiguration, err)
	}
	if p.ForceUpdate {
		j.UpdateWithoutChangesEnabled = true
	}
	return nil
}

// UpdateTargetDoc copies mapped fields from source to target. Without a
// mapping every source field is copied under its own name.
func (Controller) UpdateTargetDoc(_ context.Context, j *syncjob.Job, source, target *document.Record) error {
	if source == nil {
		return fmt.Errorf("%w: source %s %q no longer exists", docsync.ErrSkip, j.SourceDocumentType, j.SourceDocumentName)
	}
	p, err := controller.DecodeContext[Params](j.Context)
	if err != nil {
		return fmt.Errorf("%w: %v", docsync.ErrConfiguration, err)
	}

	if len(p.FieldMap) == 0 {
		for k, v := range source.Fields {
			target.Set(k, v)
		}
		return nil
	}
	for from, to := range p.FieldMap {
		if v, ok := source.Get(from); ok {
			target.Set(to, v)
		}
	}
	return nil
}
