package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

// hashChunkSize bounds memory while digesting arbitrarily large files.
const hashChunkSize = 64 * 1024

// Verdict classifies the health of a size-complete local file.
type Verdict int

const (
	// VerdictUnknown means no checksum was available and the heuristic
	// found nothing alarming. Not suspicious.
	VerdictUnknown Verdict = iota

	// VerdictVerified means the local SHA-256 matches the published one.
	VerdictVerified

	// VerdictEmpty means the local file is zero bytes.
	VerdictEmpty

	// VerdictSizeMismatch means the published authoritative size differs
	// from the local size.
	VerdictSizeMismatch

	// VerdictChecksumMismatch means sizes match but the SHA-256 does not.
	VerdictChecksumMismatch

	// VerdictSuspicious means the zero-byte heuristic flagged the file.
	VerdictSuspicious
)

func (v Verdict) String() string {
	switch v {
	case VerdictUnknown:
		return "Size OK"
	case VerdictVerified:
		return "Verified"
	case VerdictEmpty:
		return "Empty"
	case VerdictSizeMismatch:
		return "Size Mismatch"
	case VerdictChecksumMismatch:
		return "Checksum Fail"
	case VerdictSuspicious:
		return "Suspicious"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Suspicious reports whether the verdict should be surfaced as probable
// corruption.
func (v Verdict) Suspicious() bool {
	switch v {
	case VerdictEmpty, VerdictSizeMismatch, VerdictChecksumMismatch, VerdictSuspicious:
		return true
	}
	return false
}

// Report is a point-in-time judgement about one local file. It is never
// persisted; callers recompute on demand.
type Report struct {
	Verdict Verdict
	Detail  string

	// ZeroFraction and TrailingZeros are only set when the statistical
	// fallback ran.
	ZeroFraction  float64
	TrailingZeros int64
}

// PointerSource fetches remote checksum metadata for a repository path.
// *hub.Client implements it.
type PointerSource interface {
	FetchPointer(ctx context.Context, repoID, path string) (*hub.Pointer, error)
}

// Options tunes the verifier's heuristics. Zero values fall back to the
// historical defaults.
type Options struct {
	// SampleSize is the window read at the start, middle and end of the
	// file. Default: 1 MiB.
	SampleSize int64

	// ZeroFraction flags the file when the sampled zero-byte fraction
	// exceeds it. Default: 0.20.
	ZeroFraction float64

	// TrailingZeroLimit flags the file when the contiguous trailing zero
	// run exceeds it. Default: 10 MiB.
	TrailingZeroLimit int64
}

// Verifier decides whether a size-complete local file is genuinely intact:
// against the published SHA-256 when a pointer exists, otherwise with a
// zero-byte sampling heuristic. Truncated or preallocated-but-unwritten
// binary files show up as long zero runs, which size comparison alone
// cannot catch.
type Verifier struct {
	pointers PointerSource
	repoID   string
	opts     Options
	log      *zap.Logger
}

// NewVerifier creates a Verifier for one repository.
func NewVerifier(pointers PointerSource, repoID string, opts Options, log *zap.Logger) *Verifier {
	if opts.SampleSize <= 0 {
		opts.SampleSize = 1024 * 1024
	}
	if opts.ZeroFraction <= 0 {
		opts.ZeroFraction = 0.20
	}
	if opts.TrailingZeroLimit <= 0 {
		opts.TrailingZeroLimit = 10 * 1024 * 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{pointers: pointers, repoID: repoID, opts: opts, log: log}
}

// Check classifies the local file at localPath, which corresponds to relPath
// inside the repository. sink receives chunk-level progress while the digest
// streams; pass progress.Discard to stream silently. The returned error is
// reserved for local I/O failures; remote metadata being unavailable is not
// an error, it selects the statistical fallback.
func (v *Verifier) Check(ctx context.Context, localPath, relPath string, sink progress.Sink) (Report, error) {
	if sink == nil {
		sink = progress.Discard
	}

	fi, err := os.Stat(localPath)
	if err != nil {
		return Report{}, fmt.Errorf("stat %s: %w", localPath, err)
	}
	localSize := fi.Size()

	if localSize == 0 {
		return Report{Verdict: VerdictEmpty, Detail: "0 bytes"}, nil
	}

	pointer, err := v.pointers.FetchPointer(ctx, v.repoID, relPath)
	if err != nil {
		// No checksum published or the hub is unreachable: fall back to
		// the statistical heuristic rather than failing the check.
		v.log.Debug("pointer unavailable, using zero-byte heuristic",
			zap.String("path", relPath),
			zap.Error(err))
		return v.sampleZeros(localPath, localSize)
	}

	// Cheap check before the expensive one: never hash when the sizes
	// already disagree.
	if pointer.Size != localSize {
		return Report{
			Verdict: VerdictSizeMismatch,
			Detail:  fmt.Sprintf("%d vs %d bytes", localSize, pointer.Size),
		}, nil
	}

	digest, err := v.fileSHA256(ctx, localPath, sink)
	if err != nil {
		return Report{}, err
	}

	if digest == pointer.SHA256 {
		return Report{Verdict: VerdictVerified, Detail: "SHA256 ok"}, nil
	}
	return Report{Verdict: VerdictChecksumMismatch, Detail: "SHA256 mismatch"}, nil
}

// fileSHA256 streams the file through SHA-256 in fixed-size chunks,
// reporting each chunk to the sink.
func (v *Verifier) fileSHA256(ctx context.Context, path string, sink progress.Sink) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hash := sha256.New()
	buf := make([]byte, hashChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
			sink.Add(int64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// sampleZeros reads windows at the start, middle and end of the file,
// computes the zero-byte fraction across them, and counts the contiguous
// zero run at the end of the file.
func (v *Verifier) sampleZeros(path string, size int64) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	positions := []int64{0, size / 2, max(0, size-v.opts.SampleSize)}

	var sampled, zeros int64
	for _, pos := range positions {
		n := min(v.opts.SampleSize, size-pos)
		if n <= 0 {
			continue
		}
		window := make([]byte, n)
		if _, err := f.ReadAt(window, pos); err != nil && err != io.EOF {
			return Report{}, fmt.Errorf("read %s at %d: %w", path, pos, err)
		}
		sampled += n
		for _, b := range window {
			if b == 0 {
				zeros++
			}
		}
	}

	var fraction float64
	if sampled > 0 {
		fraction = float64(zeros) / float64(sampled)
	}

	// Trailing run is bounded by the tail window: a run longer than the
	// window already exceeds any sane limit below it.
	tailLen := min(v.opts.SampleSize, size)
	tail := make([]byte, tailLen)
	if _, err := f.ReadAt(tail, size-tailLen); err != nil && err != io.EOF {
		return Report{}, fmt.Errorf("read %s tail: %w", path, err)
	}
	var trailing int64
	for i := len(tail) - 1; i >= 0 && tail[i] == 0; i-- {
		trailing++
	}
	if trailing == tailLen && size > tailLen {
		// The whole window is zero; the real run may extend further back.
		trailing = v.extendTrailingRun(f, size, trailing)
	}

	report := Report{
		ZeroFraction:  fraction,
		TrailingZeros: trailing,
		Detail: fmt.Sprintf("%.1f%% zeros, %s trailing",
			fraction*100, progress.FormatBytes(trailing)),
	}

	if fraction > v.opts.ZeroFraction || trailing > v.opts.TrailingZeroLimit {
		report.Verdict = VerdictSuspicious
	} else {
		report.Verdict = VerdictUnknown
	}
	return report, nil
}

// extendTrailingRun walks backwards window by window while the file keeps
// reading as zeros, stopping early once the run passes the limit.
func (v *Verifier) extendTrailingRun(f *os.File, size, trailing int64) int64 {
	buf := make([]byte, v.opts.SampleSize)
	pos := size - trailing

	for pos > 0 && trailing <= v.opts.TrailingZeroLimit {
		n := min(v.opts.SampleSize, pos)
		window := buf[:n]
		if _, err := f.ReadAt(window, pos-n); err != nil && err != io.EOF {
			break
		}
		advanced := false
		for i := len(window) - 1; i >= 0; i-- {
			if window[i] != 0 {
				return trailing
			}
			trailing++
			advanced = true
		}
		if !advanced {
			break
		}
		pos -= n
	}
	return trailing
}
