package archive

import (
	"context"
	"errors"
	"testing"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteRead(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte("trade_date,portfolio_value\n2024-03-01,1\n")

	if err := fs.Write(ctx, "runs/demo/nav.csv", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "runs/demo/nav.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	_, err := fs.Read(context.Background(), "prices.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalFS_RejectsEscapingPaths(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	for _, path := range []string{"../outside.csv", "a/../../outside.csv", "/etc/passwd"} {
		if err := fs.Write(ctx, path, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", path)
		}
	}
}

func TestLocalFS_Exists(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.csv")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	fs.Write(ctx, "exists.csv", []byte("data"))
	exists, _ = fs.Exists(ctx, "exists.csv")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "runs/b/nav.csv", []byte("b"))
	fs.Write(ctx, "runs/a/nav.csv", []byte("a"))
	fs.Write(ctx, "inputs/prices.csv", []byte("c"))

	paths, err := fs.List(ctx, "runs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []string{"runs/a/nav.csv", "runs/b/nav.csv"}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	empty, err := fs.List(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("List(missing) = %v, %v", empty, err)
	}
}

func TestLocalFS_Delete(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "delete.csv", []byte("data"))
	fs.Delete(ctx, "delete.csv")

	exists, _ := fs.Exists(ctx, "delete.csv")
	if exists {
		t.Error("file should be deleted")
	}
}

func TestLocalFS_CancelledContext(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := fs.Write(ctx, "x.csv", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
