package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mlenz/nodeforge/pkg/dataflow"
)

func sampleDoc(entry string) *dataflow.Dataflow {
	return &dataflow.Dataflow{
		EntryGraph: entry,
		Graphs:     []dataflow.Graph{{ID: entry}},
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer fs.Close()

	if err := fs.Put(ctx, "patch", sampleDoc("main")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := fs.Get(ctx, "patch")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.EntryGraph != "main" {
		t.Errorf("EntryGraph = %q, want main", got.EntryGraph)
	}

	// Put overwrites.
	if err := fs.Put(ctx, "patch", sampleDoc("other")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ = fs.Get(ctx, "patch")
	if got.EntryGraph != "other" {
		t.Error("Put should overwrite the stored document")
	}

	if err := fs.Delete(ctx, "patch"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.Get(ctx, "patch"); !IsNotFound(err) {
		t.Errorf("Get after Delete = %v, want not-found", err)
	}
	// Deleting a missing document is not an error.
	if err := fs.Delete(ctx, "patch"); err != nil {
		t.Errorf("Delete of missing document: %v", err)
	}
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ids, err := fs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("empty store lists %v", ids)
	}

	fs.Put(ctx, "a", sampleDoc("main"))
	fs.Put(ctx, "b", sampleDoc("main"))
	// Unrelated files in the directory are not documents.
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)

	ids, err = fs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("List = %v, want [a b]", ids)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	_, err = fs.Get(context.Background(), "ghost")
	if !IsNotFound(err) {
		t.Errorf("Get of missing id = %v, want not-found", err)
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) should be false")
	}
}
