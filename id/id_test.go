package id_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/docsync/id"
)

func TestKinds(t *testing.T) {
	job, wkr := id.NewSyncJobID(), id.NewWorkerID()

	assert.Equal(t, id.KindSyncJob, job.Kind())
	assert.True(t, strings.HasPrefix(job.String(), "sjob_"), job.String())
	assert.Equal(t, id.KindWorker, wkr.Kind())
	assert.NotEqual(t, job.String(), id.NewSyncJobID().String())

	_, err := id.ParseSyncJobID(wkr.String())
	assert.ErrorContains(t, err, "is a wkr id, want sjob")
	_, err = id.ParseWorkerID(job.String())
	assert.Error(t, err)

	back, err := id.ParseSyncJobID(job.String())
	require.NoError(t, err)
	assert.Equal(t, job.String(), back.String())

	generic, err := id.Parse(wkr.String(), "")
	require.NoError(t, err)
	assert.Equal(t, id.KindWorker, generic.Kind())
}

func TestParseRejects(t *testing.T) {
	_, err := id.ParseSyncJobID("")
	assert.True(t, errors.Is(err, id.ErrEmpty))

	for _, in := range []string{"SO-0001", "sjob_", "sjob-01h2xcejqtf2nbrexx3vqjhp41"} {
		_, err := id.ParseSyncJobID(in)
		assert.Error(t, err, in)
	}
}

func TestNilEncodesEmpty(t *testing.T) {
	var parent id.SyncJobID
	assert.True(t, parent.IsNil())
	assert.Empty(t, parent.Kind())

	v, err := parent.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	b, err := json.Marshal(struct {
		Parent id.SyncJobID `json:"parent_job"`
	}{parent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"parent_job":""}`, string(b))
}

func TestJobReferenceInJSON(t *testing.T) {
	type child struct {
		Parent id.SyncJobID `json:"parent_job"`
	}
	parent := id.NewSyncJobID()
	b, err := json.Marshal(child{Parent: parent})
	require.NoError(t, err)

	var got child
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, parent.String(), got.Parent.String())

	require.Error(t, json.Unmarshal([]byte(`{"parent_job":"nope"}`), &got))
}

func TestScan(t *testing.T) {
	want := id.NewSyncJobID()
	for _, src := range []any{want.String(), []byte(want.String())} {
		var got id.ID
		require.NoError(t, got.Scan(src))
		assert.Equal(t, want.String(), got.String())
	}
	for _, src := range []any{nil, "", []byte{}} {
		got := id.NewSyncJobID()
		require.NoError(t, got.Scan(src))
		assert.True(t, got.IsNil(), "%#v", src)
	}
	var got id.ID
	assert.Error(t, got.Scan(42))
}
