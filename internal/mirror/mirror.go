package mirror

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// copyChunkSize is the streaming buffer for bucket uploads.
const copyChunkSize = 1024 * 1024

// Result summarizes one mirror pass.
type Result struct {
	Uploaded      int
	Skipped       int
	Failed        []string
	BytesUploaded int64
}

// Mirror copies a downloaded repository snapshot into a blob bucket.
// Objects whose stored size already matches the local file are skipped,
// so repeated pushes only transfer what changed. Per-file failures are
// collected, not fatal, matching how downloads treat them.
type Mirror struct {
	bucket *blob.Bucket
	log    *zap.Logger
}

// New creates a Mirror writing to bucket. The bucket stays owned by the
// caller and is not closed here.
func New(bucket *blob.Bucket, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{bucket: bucket, log: log}
}

// Push uploads every regular file under localDir to the bucket, keyed as
// prefix plus the slash-separated relative path.
func (m *Mirror) Push(ctx context.Context, localDir, prefix string) (*Result, error) {
	result := &Result{}

	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" {
			key = prefix + "/" + key
		}

		n, uploaded, err := m.pushFile(ctx, path, key)
		switch {
		case err != nil:
			m.log.Warn("upload failed", zap.String("key", key), zap.Error(err))
			result.Failed = append(result.Failed, key)
		case uploaded:
			result.Uploaded++
			result.BytesUploaded += n
		default:
			result.Skipped++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("mirror walk: %w", err)
	}
	return result, nil
}

// pushFile uploads one file unless the bucket already holds an object of
// the same size under the key.
func (m *Mirror) pushFile(ctx context.Context, path, key string) (int64, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}

	attrs, err := m.bucket.Attributes(ctx, key)
	if err == nil && attrs.Size == fi.Size() {
		return 0, false, nil
	}
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return 0, false, fmt.Errorf("object attributes: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	w, err := m.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return 0, false, fmt.Errorf("open bucket writer: %w", err)
	}

	n, err := io.CopyBuffer(w, f, make([]byte, copyChunkSize))
	if err != nil {
		w.Close()
		// An aborted writer must not leave a truncated object behind.
		m.bucket.Delete(ctx, key)
		return n, false, fmt.Errorf("upload: %w", err)
	}
	if err := w.Close(); err != nil {
		m.bucket.Delete(ctx, key)
		return n, false, fmt.Errorf("finalize upload: %w", err)
	}

	m.log.Debug("uploaded", zap.String("key", key), zap.Int64("bytes", n))
	return n, true, nil
}
