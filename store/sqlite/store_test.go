package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/docsync/store"
	"github.com/xraph/docsync/store/sqlite"
	"github.com/xraph/docsync/store/storetest"
	"github.com/xraph/docsync/syncjob"
)

func openStore(t *testing.T, dsn string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openStore(t, ":memory:")
	})
}

func TestStoreOnDisk(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "docsync.db")
	ctx := context.Background()

	s := openStore(t, dsn)
	typ := storetest.NewType("persisted")
	if err := s.CreateType(ctx, typ); err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	j := syncjob.NewJob(typ, "Order", "O-9")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openStore(t, dsn)
	got, err := reopened.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob after reopen: %v", err)
	}
	if got.SourceDocumentName != "O-9" || got.Status != syncjob.StatusPending {
		t.Errorf("reopened job = %+v", got)
	}
}
