//go:build integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/JoostHazelzet/download-hf-repo/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	const repoID = "acme/cli-test-model"

	weights := testutils.PatternData(2 * 1024 * 1024)
	cfgJSON := []byte(`{"hidden_size": 128}`)

	t.Log("Starting fake hub...")
	fake := testutils.StartFakeHub(t, repoID, []testutils.HubFile{
		{Path: "model.safetensors", Data: weights, LFS: true},
		{Path: "config.json", Data: cfgJSON},
	})

	base := t.TempDir()
	localDir := filepath.Join(base, "models", "acme", "cli-test-model")

	t.Run("download", func(t *testing.T) {
		exitCode := runDownload([]string{
			"-endpoint", fake.URL(),
			"-path", base,
			"-progress=false",
			repoID,
		})
		if exitCode != ExitSuccess {
			t.Fatalf("download failed with exit code %d", exitCode)
		}

		got, err := os.ReadFile(filepath.Join(localDir, "model.safetensors"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, weights) {
			t.Fatal("downloaded weights differ from source")
		}
	})

	t.Run("check", func(t *testing.T) {
		exitCode := runCheck([]string{
			"-endpoint", fake.URL(),
			"-path", base,
			repoID,
		})
		if exitCode != ExitSuccess {
			t.Fatalf("check failed with exit code %d", exitCode)
		}
	})

	t.Run("check_detects_truncation", func(t *testing.T) {
		path := filepath.Join(localDir, "config.json")
		if err := os.WriteFile(path, cfgJSON[:5], 0644); err != nil {
			t.Fatal(err)
		}
		exitCode := runCheck([]string{
			"-endpoint", fake.URL(),
			"-path", base,
			repoID,
		})
		if exitCode != ExitCheckFailed {
			t.Fatalf("check exit code = %d, want %d", exitCode, ExitCheckFailed)
		}

		// Heal it and verify the re-run repairs only the truncated file.
		if runDownload([]string{"-endpoint", fake.URL(), "-path", base, "-progress=false", repoID}) != ExitSuccess {
			t.Fatal("repair download failed")
		}
	})

	t.Log("Starting Minio container...")
	bucket := testutils.StartBucket(t, ctx, "hfget-test-bucket")
	defer func() {
		if err := bucket.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	t.Run("mirror", func(t *testing.T) {
		exitCode := runMirror([]string{
			"-path", base,
			"-bucket", bucket.BucketURL,
			repoID,
		})
		if exitCode != ExitSuccess {
			t.Fatalf("mirror failed with exit code %d", exitCode)
		}

		b, err := bucket.OpenBucket(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()

		got, err := b.ReadAll(ctx, "models/acme/cli-test-model/model.safetensors")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, weights) {
			t.Fatal("mirrored weights differ from local snapshot")
		}
	})
}
