package main

import (
	"flag"
	"fmt"
	"os"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	"github.com/JoostHazelzet/download-hf-repo/internal/mirror"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

func runMirror(args []string) int {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)

	common := registerCommon(fs)
	bucketURL := fs.String("bucket", "", "Destination bucket URL, e.g. s3://my-bucket (required)")
	prefix := fs.String("prefix", "", "Object key prefix (default models/{org}/{model})")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: hfget mirror [options] <org/model>

Push the local snapshot of a repository to object storage. Objects whose
size already matches are skipped, so repeated pushes transfer only what
changed. Run 'hfget check' first if the snapshot's integrity matters.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one repository id is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	repoID := fs.Arg(0)

	if *bucketURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -bucket is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	localDir, err := hub.LocalDir(cfg.ResolveBasePath(*common.path), repoID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if fi, err := os.Stat(localDir); err != nil || !fi.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: no local snapshot at %s; run 'hfget download %s' first\n", localDir, repoID)
		return ExitGeneralError
	}

	keyPrefix := *prefix
	if keyPrefix == "" {
		org, name, err := hub.SplitRepoID(repoID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		keyPrefix = "models/" + org + "/" + name
	}

	log := common.logger()
	defer log.Sync()

	ctx, cancel := interruptContext()
	defer cancel()

	bucket, err := blob.OpenBucket(ctx, *bucketURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	fmt.Fprintf(os.Stderr, "[hfget] Mirroring %s to %s/%s\n", localDir, *bucketURL, keyPrefix)

	result, err := mirror.New(bucket, log).Push(ctx, localDir, keyPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	fmt.Fprintf(os.Stderr, "[hfget] Mirrored: %d uploaded (%s), %d skipped\n",
		result.Uploaded, progress.FormatBytes(result.BytesUploaded), result.Skipped)

	if len(result.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "[hfget] %d objects failed; run again to retry:\n", len(result.Failed))
		for _, key := range result.Failed {
			fmt.Fprintf(os.Stderr, "[hfget]   %s\n", key)
		}
		return ExitStorageError
	}
	return ExitSuccess
}
