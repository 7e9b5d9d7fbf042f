package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives byte-count progress events from transfers and checksum
// computation. Implementations must be safe for use from the transfer loop.
type Sink interface {
	Add(n int64)
}

// Discard is a Sink that ignores all events.
var Discard Sink = discard{}

type discard struct{}

func (discard) Add(int64) {}

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to redraw the progress line.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter renders a single in-flight file transfer as an updating line.
// Files are processed one at a time, so at most one file is active; Add is
// still safe to call from any goroutine.
type Reporter struct {
	opts Options

	mu        sync.Mutex
	path      string
	total     int64
	startFrom int64
	startTime time.Time
	lastBytes int64
	lastTick  time.Time
	active    bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	current  atomic.Int64 // bytes of the active file, including startFrom
	runBytes atomic.Int64 // bytes transferred across the whole run
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	return &Reporter{opts: opts}
}

// StartFile begins progress display for one file. initial is the byte count
// already on disk when resuming, so the percentage starts from the resume
// offset rather than zero.
func (r *Reporter) StartFile(path string, total, initial int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.path = path
	r.total = total
	r.startFrom = initial
	r.startTime = time.Now()
	r.lastTick = r.startTime
	r.lastBytes = initial
	r.current.Store(initial)
	r.active = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.updateLoop(r.stopCh, r.doneCh)
}

// Add records n transferred bytes. Implements Sink.
func (r *Reporter) Add(n int64) {
	r.current.Add(n)
	r.runBytes.Add(n)
}

// FinishFile stops the display for the active file and prints a final line.
// It does not return until the final line has been written, so callers can
// print their own output immediately afterwards without interleaving.
func (r *Reporter) FinishFile() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	stop, done := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stop)
	<-done
}

// RunBytes returns the total bytes transferred across all files so far.
func (r *Reporter) RunBytes() int64 {
	return r.runBytes.Load()
}

func (r *Reporter) updateLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			r.printLine(true)
			fmt.Fprintln(r.opts.Output)
			return
		case <-ticker.C:
			r.printLine(false)
		}
	}
}

func (r *Reporter) printLine(final bool) {
	r.mu.Lock()
	path := r.path
	total := r.total
	start := r.startTime
	startFrom := r.startFrom
	lastBytes := r.lastBytes
	lastTick := r.lastTick
	now := time.Now()
	current := r.current.Load()
	r.lastBytes = current
	r.lastTick = now
	r.mu.Unlock()

	var speed float64
	if final {
		elapsed := now.Sub(start).Seconds()
		if elapsed > 0 {
			speed = float64(current-startFrom) / elapsed
		}
	} else {
		elapsed := now.Sub(lastTick).Seconds()
		if elapsed < 0.1 {
			elapsed = 0.1
		}
		speed = float64(current-lastBytes) / elapsed
	}

	var percent float64
	eta := "calculating..."
	if total > 0 {
		percent = float64(current) / float64(total) * 100
		if final {
			eta = "done"
		} else if speed > 0 {
			remaining := float64(total - current)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		}
	}

	fmt.Fprintf(r.opts.Output, "\r[hfget]   %s: %.1f%% | %s / %s | %s/s | ETA: %s    ",
		path,
		percent,
		formatBytes(current),
		formatBytes(total),
		formatBytes(int64(speed)),
		eta,
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}

// ParseBytes parses a human-readable byte string (e.g., "256MB").
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1
	s = trimSuffix(s, " ")

	switch {
	case hasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	var value float64
	_, err := fmt.Sscanf(s, "%f", &value)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func trimSuffix(s, suffix string) string {
	for hasSuffix(s, suffix) {
		s = s[:len(s)-len(suffix)]
	}
	return s
}
