package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
)

// fakePointers serves canned pointers keyed by repository path.
type fakePointers struct {
	pointers map[string]*hub.Pointer
	err      error
}

func (f *fakePointers) FetchPointer(ctx context.Context, repoID, path string) (*hub.Pointer, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pointers[path]
	if !ok {
		return nil, hub.ErrNoPointer
	}
	return p, nil
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func randomData(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	rng := rand.New(rand.NewSource(42))
	for i := range data {
		// Avoid zeros entirely so the fraction is deterministic.
		data[i] = byte(rng.Intn(255) + 1)
	}
	return data
}

func TestCheckEmpty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.bin", nil)
	v := NewVerifier(&fakePointers{}, "org/model", Options{}, nil)

	report, err := v.Check(context.Background(), path, "empty.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictEmpty {
		t.Errorf("expected Empty, got %v", report.Verdict)
	}
	if !report.Verdict.Suspicious() {
		t.Error("expected Empty to be suspicious")
	}
}

func TestCheckVerified(t *testing.T) {
	data := randomData(t, 4096)
	path := writeFile(t, t.TempDir(), "model.bin", data)

	sum := sha256.Sum256(data)
	pointers := &fakePointers{pointers: map[string]*hub.Pointer{
		"model.bin": {SHA256: hex.EncodeToString(sum[:]), Size: int64(len(data))},
	}}

	v := NewVerifier(pointers, "org/model", Options{}, nil)
	report, err := v.Check(context.Background(), path, "model.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictVerified {
		t.Errorf("expected Verified, got %v", report.Verdict)
	}
	if report.Verdict.Suspicious() {
		t.Error("Verified must not be suspicious")
	}
}

func TestCheckChecksumMismatch(t *testing.T) {
	data := randomData(t, 4096)
	path := writeFile(t, t.TempDir(), "model.bin", data)

	pointers := &fakePointers{pointers: map[string]*hub.Pointer{
		"model.bin": {SHA256: "0000000000000000", Size: int64(len(data))},
	}}

	v := NewVerifier(pointers, "org/model", Options{}, nil)
	report, err := v.Check(context.Background(), path, "model.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictChecksumMismatch {
		t.Errorf("expected ChecksumMismatch, got %v", report.Verdict)
	}
}

func TestCheckSizeMismatchShortCircuits(t *testing.T) {
	data := randomData(t, 4096)
	path := writeFile(t, t.TempDir(), "model.bin", data)

	// Wrong size with a garbage checksum: the checksum must never be
	// computed, so the verdict has to be SizeMismatch.
	pointers := &fakePointers{pointers: map[string]*hub.Pointer{
		"model.bin": {SHA256: "not-a-real-digest", Size: int64(len(data)) + 100},
	}}

	v := NewVerifier(pointers, "org/model", Options{}, nil)
	report, err := v.Check(context.Background(), path, "model.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictSizeMismatch {
		t.Errorf("expected SizeMismatch, got %v", report.Verdict)
	}
}

func TestHeuristicTrailingZeros(t *testing.T) {
	// Correct-size file whose tail is zero-filled, as produced by a
	// truncated write into a preallocated file. Thresholds are scaled
	// down so the test file stays small.
	data := randomData(t, 16*1024)
	for i := 10 * 1024; i < len(data); i++ {
		data[i] = 0
	}
	path := writeFile(t, t.TempDir(), "weights.bin", data)

	v := NewVerifier(&fakePointers{}, "org/model", Options{
		SampleSize:        1024,
		ZeroFraction:      0.90, // keep the fraction rule out of the way
		TrailingZeroLimit: 4 * 1024,
	}, nil)

	report, err := v.Check(context.Background(), path, "weights.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictSuspicious {
		t.Errorf("expected Suspicious, got %v (%s)", report.Verdict, report.Detail)
	}
	if report.TrailingZeros <= 4*1024 {
		t.Errorf("expected trailing run above limit, got %d", report.TrailingZeros)
	}
}

func TestHeuristicZeroFraction(t *testing.T) {
	// Zeros spread through the middle of the file trip the sampled
	// fraction rule even without a long trailing run.
	data := randomData(t, 16*1024)
	for i := 4 * 1024; i < 12*1024; i++ {
		data[i] = 0
	}
	data[len(data)-1] = 0xff // no trailing run

	path := writeFile(t, t.TempDir(), "weights.bin", data)

	v := NewVerifier(&fakePointers{}, "org/model", Options{
		SampleSize:        1024,
		ZeroFraction:      0.20,
		TrailingZeroLimit: 1 << 40,
	}, nil)

	report, err := v.Check(context.Background(), path, "weights.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictSuspicious {
		t.Errorf("expected Suspicious, got %v (%s)", report.Verdict, report.Detail)
	}
	if report.ZeroFraction <= 0.20 {
		t.Errorf("expected zero fraction above 0.20, got %f", report.ZeroFraction)
	}
}

func TestHeuristicCleanFile(t *testing.T) {
	data := randomData(t, 16*1024)
	path := writeFile(t, t.TempDir(), "weights.bin", data)

	v := NewVerifier(&fakePointers{}, "org/model", Options{
		SampleSize:        1024,
		ZeroFraction:      0.20,
		TrailingZeroLimit: 4 * 1024,
	}, nil)

	report, err := v.Check(context.Background(), path, "weights.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictUnknown {
		t.Errorf("expected Unknown for clean file, got %v", report.Verdict)
	}
	if report.Verdict.Suspicious() {
		t.Error("clean file must not be suspicious")
	}
}

func TestPointerFetchFailureFallsBack(t *testing.T) {
	data := randomData(t, 8*1024)
	path := writeFile(t, t.TempDir(), "model.bin", data)

	// Network failure on the pointer fetch selects the heuristic, it is
	// not an error.
	pointers := &fakePointers{err: errors.New("connection refused")}

	v := NewVerifier(pointers, "org/model", Options{
		SampleSize:        1024,
		ZeroFraction:      0.20,
		TrailingZeroLimit: 4 * 1024,
	}, nil)

	report, err := v.Check(context.Background(), path, "model.bin", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictUnknown {
		t.Errorf("expected Unknown, got %v", report.Verdict)
	}
}

func TestDigestProgressReported(t *testing.T) {
	data := randomData(t, 200*1024) // several 64 KiB chunks
	path := writeFile(t, t.TempDir(), "model.bin", data)

	sum := sha256.Sum256(data)
	pointers := &fakePointers{pointers: map[string]*hub.Pointer{
		"model.bin": {SHA256: hex.EncodeToString(sum[:]), Size: int64(len(data))},
	}}

	var reported int64
	sink := sinkFunc(func(n int64) { reported += n })

	v := NewVerifier(pointers, "org/model", Options{}, nil)
	report, err := v.Check(context.Background(), path, "model.bin", sink)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Verdict != VerdictVerified {
		t.Fatalf("expected Verified, got %v", report.Verdict)
	}
	if reported != int64(len(data)) {
		t.Errorf("expected %d bytes reported, got %d", len(data), reported)
	}
}

type sinkFunc func(int64)

func (f sinkFunc) Add(n int64) { f(n) }

func TestCheckStatError(t *testing.T) {
	v := NewVerifier(&fakePointers{}, "org/model", Options{}, nil)
	if _, err := v.Check(context.Background(), "/nonexistent/file", "x", nil); err == nil {
		t.Error("expected error for missing file")
	}
}
