// Package progress provides progress reporting for sequential downloads.
//
// The core emits byte-count events through the Sink interface; the Reporter
// renders the single in-flight file as an updating stderr line with
// percentage, transfer speed, and ETA. Files below the display threshold are
// streamed silently by passing Discard as the sink.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{})
//
//	reporter.StartFile("model.safetensors", totalBytes, resumeOffset)
//	// stream chunks, calling reporter.Add(len(chunk))
//	reporter.FinishFile()
//
// # Output Format
//
//	[hfget]   model.safetensors: 45.2% | 1.13 GB / 2.50 GB | 12.1 MB/s | ETA: 1m 54s
package progress
