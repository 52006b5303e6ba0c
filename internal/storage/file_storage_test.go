package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

func makeTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "filestorage_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func TestFileStorage_Exists(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	full := filepath.Join(dir, "full.zip")
	empty := filepath.Join(dir, "empty.zip")
	if err := os.WriteFile(full, []byte("zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if !fs.Exists(full) {
		t.Errorf("expected non-empty file to exist")
	}
	if fs.Exists(empty) {
		t.Errorf("expected empty file to be treated as absent")
	}
	if fs.Exists(filepath.Join(dir, "missing.zip")) {
		t.Errorf("expected missing file to be absent")
	}
	if fs.Exists(dir) {
		t.Errorf("expected directory to be absent")
	}
}

func TestFileStorage_ShouldFetch(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	c := domain.FetchCandidate{LocalPath: filepath.Join(dir, "a", "BTCUSDT-klines-1h-2024-01.zip")}

	if !fs.ShouldFetch(c, false) {
		t.Errorf("expected missing file to be fetched")
	}

	if err := fs.WriteAtomic(c.LocalPath, []byte("data")); err != nil {
		t.Fatalf("WriteAtomic error: %v", err)
	}

	if fs.ShouldFetch(c, false) {
		t.Errorf("expected existing file to be skipped")
	}
	if !fs.ShouldFetch(c, true) {
		t.Errorf("expected force to fetch existing file")
	}
}

func TestFileStorage_TempCommit(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	final := filepath.Join(dir, "um", "monthly", "klines", "x.zip")
	f, err := fs.CreateTemp(final)
	if err != nil {
		t.Fatalf("CreateTemp error: %v", err)
	}
	if filepath.Dir(f.Name()) != filepath.Dir(final) {
		t.Errorf("temp file must live next to final path, got %s", f.Name())
	}
	if _, err := f.WriteString("payload"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if fs.Exists(final) {
		t.Errorf("final path must not exist before commit")
	}
	if err := fs.Commit(f.Name(), final); err != nil {
		t.Fatalf("Commit error: %v", err)
	}

	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("stat committed file: %v", err)
	}
	if info.Size() != int64(len("payload")) {
		t.Errorf("expected size %d, got %d", len("payload"), info.Size())
	}
}

func TestFileStorage_DiscardAndCleanTemp(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	final := filepath.Join(dir, "spot", "daily", "trades", "y.zip")
	a, err := fs.CreateTemp(final)
	if err != nil {
		t.Fatal(err)
	}
	a.Close()
	b, err := fs.CreateTemp(final)
	if err != nil {
		t.Fatal(err)
	}
	b.Close()

	if err := fs.Discard(a.Name()); err != nil {
		t.Fatalf("Discard error: %v", err)
	}
	if err := fs.Discard(a.Name()); err != nil {
		t.Errorf("second Discard should be a no-op, got %v", err)
	}

	if err := fs.WriteAtomic(final, []byte("kept")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(b.Name(), old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := fs.CleanTemp(time.Hour)
	if err != nil {
		t.Fatalf("CleanTemp error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 stale temp file removed, got %d", removed)
	}
	if !fs.Exists(final) {
		t.Errorf("committed file must survive CleanTemp")
	}
}

func TestFileStorage_CleanTempKeepsFreshFiles(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	final := filepath.Join(dir, "um", "daily", "klines", "BTCUSDT", "1m", "BTCUSDT-klines-1m-2024-01-01.zip")
	f, err := fs.CreateTemp(final)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("partial"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	removed, err := fs.CleanTemp(time.Hour)
	if err != nil {
		t.Fatalf("CleanTemp error: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected fresh temp file to be kept, %d removed", removed)
	}
	if _, err := os.Stat(f.Name()); err != nil {
		t.Fatalf("fresh temp file was removed: %v", err)
	}

	// A writer that finishes after the sweep can still commit.
	if err := fs.Commit(f.Name(), final); err != nil {
		t.Errorf("Commit after CleanTemp: %v", err)
	}
}
