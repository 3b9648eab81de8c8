package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunSummarizesFeed(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	path := filepath.Join("..", "..", "internal", "oem", "testdata", "iss_sample.txt")

	if err := run(&out, path, "", "2023-02-15T12:09:00Z", logger); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"State vectors:    10",
		"First epoch:      2023-02-15T12:00:00.000",
		"Last epoch:       2023-02-15T12:36:00.000",
		"2023-02-15T12:08:00.000 (gap -60.0s)",
		"speed:",
		"ground point (WGS84)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunMissingFile(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := run(io.Discard, filepath.Join(t.TempDir(), "none.txt"), "", "", logger); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunEmptyCacheDir(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := run(io.Discard, "", t.TempDir(), "", logger); err == nil {
		t.Fatal("expected error for empty cache dir")
	}
}
