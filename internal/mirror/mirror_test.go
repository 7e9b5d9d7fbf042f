package mirror

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

func writeTree(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for path, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPushUploadsTree(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()

	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{
		"config.json":         []byte(`{"a":1}`),
		"weights/model.bin":   bytes.Repeat([]byte{7}, 4096),
		"weights/model.2.bin": bytes.Repeat([]byte{9}, 1024),
	})

	m := New(bucket, nil)
	result, err := m.Push(ctx, dir, "models/acme/tiny")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Uploaded != 3 || result.Skipped != 0 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v", result)
	}

	data, err := bucket.ReadAll(ctx, "models/acme/tiny/weights/model.bin")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte{7}, 4096)) {
		t.Error("uploaded object differs from local file")
	}
}

func TestPushSkipsUnchangedObjects(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()

	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{
		"a.bin": bytes.Repeat([]byte{1}, 512),
		"b.bin": bytes.Repeat([]byte{2}, 256),
	})

	m := New(bucket, nil)
	if _, err := m.Push(ctx, dir, ""); err != nil {
		t.Fatalf("first push: %v", err)
	}

	result, err := m.Push(ctx, dir, "")
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if result.Uploaded != 0 || result.Skipped != 2 {
		t.Fatalf("second push result = %+v, want everything skipped", result)
	}
}

func TestPushReplacesChangedObject(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()

	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{"a.bin": bytes.Repeat([]byte{1}, 512)})

	m := New(bucket, nil)
	if _, err := m.Push(ctx, dir, ""); err != nil {
		t.Fatal(err)
	}

	// Same key, different size: must be re-uploaded.
	writeTree(t, dir, map[string][]byte{"a.bin": bytes.Repeat([]byte{1}, 700)})
	result, err := m.Push(ctx, dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Uploaded != 1 {
		t.Fatalf("result = %+v, want one upload", result)
	}

	data, err := bucket.ReadAll(ctx, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 700 {
		t.Errorf("object size = %d, want 700", len(data))
	}
}

func TestPushEmptyDir(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()

	result, err := New(bucket, nil).Push(ctx, t.TempDir(), "x")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Uploaded != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
}
