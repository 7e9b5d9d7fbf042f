package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/JoostHazelzet/download-hf-repo/internal/downloader"
)

func TestPrintReportSortsByPath(t *testing.T) {
	report := &downloader.StatusReport{
		RepoID: "acme/tiny-model",
		Files: []downloader.FileStatus{
			{Path: "z/weights.bin", State: downloader.StateComplete, ExpectedSize: 100, SizeKnown: true},
			{Path: "a/config.json", State: downloader.StateMissing, ExpectedSize: 10, SizeKnown: true},
			{Path: "m/tokenizer.json", State: downloader.StateIncomplete, ExpectedSize: 50, LocalSize: 20, SizeKnown: true},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	a := strings.Index(out, "a/config.json")
	m := strings.Index(out, "m/tokenizer.json")
	z := strings.Index(out, "z/weights.bin")
	if a < 0 || m < 0 || z < 0 {
		t.Fatalf("missing paths in output:\n%s", out)
	}
	if !(a < m && m < z) {
		t.Fatalf("output not sorted by path:\n%s", out)
	}

	// The input report keeps its manifest order.
	if report.Files[0].Path != "z/weights.bin" {
		t.Fatalf("printReport reordered the report: %q", report.Files[0].Path)
	}
}
