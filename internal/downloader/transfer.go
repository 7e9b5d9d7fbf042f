package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	hfhttp "github.com/JoostHazelzet/download-hf-repo/internal/http"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

// transferChunkSize is the streaming buffer for disk writes.
const transferChunkSize = 8 * 1024

// Outcome records the result of executing one planned action.
type Outcome struct {
	Path          string
	Succeeded     bool
	BytesWritten  int64
	FailureReason string
}

// Executor performs the byte transfer for one file at a time. A failed or
// interrupted transfer deletes the partial local file so it can never be
// mistaken for a complete one on the next run.
type Executor struct {
	client  *hfhttp.Client
	limiter *rate.Limiter
	log     *zap.Logger

	// reporter renders per-file progress for files whose expected size
	// exceeds displayThreshold. Smaller files stream silently.
	reporter         *progress.Reporter
	displayThreshold int64
}

// NewExecutor creates an Executor. rateLimit is in bytes per second; zero
// disables throttling. reporter may be nil.
func NewExecutor(client *hfhttp.Client, rateLimit int64, displayThreshold int64, reporter *progress.Reporter, log *zap.Logger) *Executor {
	var limiter *rate.Limiter
	if rateLimit > 0 {
		burst := int(rateLimit)
		if burst < transferChunkSize {
			burst = transferChunkSize
		}
		limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if displayThreshold <= 0 {
		displayThreshold = 10 * 1024 * 1024
	}
	return &Executor{
		client:           client,
		limiter:          limiter,
		log:              log,
		reporter:         reporter,
		displayThreshold: displayThreshold,
	}
}

// Execute carries out one planned action. url is the byte-transfer URL and
// localPath the destination file. The action must have been computed from
// the current local state; Execute trusts it and does not re-plan.
func (e *Executor) Execute(ctx context.Context, entry hub.Entry, action Action, url, localPath string) Outcome {
	switch action.Kind {
	case ActionSkip:
		return Outcome{Path: entry.Path, Succeeded: true}

	case ActionRestart:
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			return e.fail(entry.Path, fmt.Errorf("remove corrupt file: %w", err))
		}
		return e.transfer(ctx, entry, url, localPath, 0)

	case ActionDownload:
		return e.transfer(ctx, entry, url, localPath, 0)

	case ActionResume:
		return e.transfer(ctx, entry, url, localPath, action.Offset)

	default:
		return e.fail(entry.Path, fmt.Errorf("unknown action %v", action.Kind))
	}
}

// transfer streams the file from offset to disk. offset > 0 appends to the
// existing partial file via a range request; offset 0 truncates.
func (e *Executor) transfer(ctx context.Context, entry hub.Entry, url, localPath string, offset int64) Outcome {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return e.fail(entry.Path, fmt.Errorf("create directory: %w", err))
	}

	resp, err := e.client.Get(ctx, url, offset)
	if err != nil {
		return e.fail(entry.Path, err)
	}

	if offset > 0 && !resp.Partial {
		// The server ignored the Range header. It must never be allowed
		// to append duplicate or shifted bytes onto the partial file:
		// drop the response, delete the partial, start over from zero.
		resp.Body.Close()
		e.log.Debug("server ignored range request, restarting from zero",
			zap.String("path", entry.Path),
			zap.Int64("offset", offset))

		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			return e.fail(entry.Path, fmt.Errorf("remove partial file: %w", err))
		}

		resp, err = e.client.Get(ctx, url, 0)
		if err != nil {
			return e.fail(entry.Path, err)
		}
		offset = 0
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if offset > 0 {
		flags = os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(localPath, flags, 0644)
	if err != nil {
		return e.fail(entry.Path, fmt.Errorf("open local file: %w", err))
	}

	sink := progress.Sink(progress.Discard)
	if e.reporter != nil && entry.SizeKnown && entry.Size > e.displayThreshold {
		e.reporter.StartFile(entry.Path, entry.Size, offset)
		defer e.reporter.FinishFile()
		sink = e.reporter
	}

	written, err := e.stream(ctx, resp, f, sink)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close local file: %w", cerr)
	}
	if err != nil {
		// An interrupted run keeps its partial so the next run can
		// resume it. Real I/O failures delete: a half-written file of
		// unknown provenance must never pass for a complete one.
		if ctx.Err() == nil {
			os.Remove(localPath)
		}
		return Outcome{Path: entry.Path, BytesWritten: written, FailureReason: err.Error()}
	}

	if entry.SizeKnown && offset+written != entry.Size {
		os.Remove(localPath)
		return Outcome{
			Path:          entry.Path,
			BytesWritten:  written,
			FailureReason: fmt.Sprintf("size mismatch after download: got %d, expected %d", offset+written, entry.Size),
		}
	}

	return Outcome{Path: entry.Path, Succeeded: true, BytesWritten: written}
}

// stream copies the response body to f in fixed-size chunks, reporting each
// chunk to the sink and honoring the byte-rate limiter.
func (e *Executor) stream(ctx context.Context, resp *hfhttp.Response, f *os.File, sink progress.Sink) (int64, error) {
	buf := make([]byte, transferChunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			// Zero-length chunks are ignored, not treated as EOF.
			nw, writeErr := f.Write(buf[:n])
			written += int64(nw)
			if writeErr != nil {
				return written, fmt.Errorf("write: %w", writeErr)
			}
			sink.Add(int64(nw))

			if e.limiter != nil {
				if err := e.limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("read: %w", readErr)
		}
	}
}

func (e *Executor) fail(path string, err error) Outcome {
	return Outcome{Path: path, FailureReason: err.Error()}
}
