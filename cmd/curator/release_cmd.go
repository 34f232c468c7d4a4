package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lexhr/curator/pkg/config"
	"github.com/lexhr/curator/pkg/release"
	"github.com/lexhr/curator/pkg/rules"
)

// runReleaseHash implements `curator release-hash`.
func runReleaseHash(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("release-hash", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		in      string
		version string
		out     string
		upload  bool
	)
	cmd.StringVar(&in, "in", "", "Path to a JSON array of rules (REQUIRED)")
	cmd.StringVar(&version, "version", "", "Semver release version; when set a snapshot artifact is produced")
	cmd.StringVar(&out, "out", "", "Snapshot output path (default: stdout)")
	cmd.BoolVar(&upload, "upload", false, "Upload the snapshot to the S3 bucket from S3_BUCKET/S3_PREFIX")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if in == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -in is required")
		return 2
	}
	if upload && version == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -upload requires -version")
		return 2
	}

	data, err := os.ReadFile(in)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read rules: %v\n", err)
		return 2
	}
	var rs []*rules.RegulatoryRule
	if err := json.Unmarshal(data, &rs); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse rules: %v\n", err)
		return 2
	}

	hash, err := release.ComputeReleaseHash(rs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if version == "" {
		_, _ = fmt.Fprintln(stdout, hash)
		return 0
	}

	snap, err := release.NewSnapshot(version, rs, time.Now())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	artifact, err := snap.Marshal()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: marshal snapshot: %v\n", err)
		return 2
	}

	if upload {
		cfg := config.Load()
		if cfg.S3Bucket == "" {
			_, _ = fmt.Fprintln(stderr, "Error: -upload requires S3_BUCKET")
			return 2
		}
		ctx := context.Background()
		exporter, err := release.NewS3ExporterFromEnv(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: s3 exporter: %v\n", err)
			return 2
		}
		location, err := exporter.Export(ctx, snap)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: upload snapshot: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "uploaded %s\n", location)
	}

	if out == "" {
		_, _ = fmt.Fprintln(stdout, string(artifact))
		return 0
	}
	if err := os.WriteFile(out, artifact, 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: write snapshot: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "wrote %s (%d rules, hash %s)\n", out, snap.RuleCount, snap.ReleaseHash)
	return 0
}

// runVerifySnapshot implements `curator verify-snapshot`.
func runVerifySnapshot(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify-snapshot", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var in string
	cmd.StringVar(&in, "in", "", "Path to a snapshot JSON artifact (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if in == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -in is required")
		return 2
	}

	data, err := os.ReadFile(in)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read snapshot: %v\n", err)
		return 2
	}
	snap, err := release.ParseSnapshot(data)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "verification FAILED: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "OK %s (%d rules, hash %s)\n", snap.Version, snap.RuleCount, snap.ReleaseHash)
	return 0
}
