package video

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepRemovesOnlyStaleManagedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name string, age time.Duration) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		mtime := time.Now().Add(-age)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		return path
	}

	stale := write("recipesnap-old.mp4", 3*time.Hour)
	fresh := write("recipesnap-new.mp4", time.Minute)
	foreign := write("unrelated.txt", 3*time.Hour)

	j := NewJanitor(dir, time.Hour, nil)
	j.Sweep(time.Now())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file removed: %v", err)
	}
}

func TestSweepMissingDirIsHarmless(t *testing.T) {
	t.Parallel()

	j := NewJanitor(filepath.Join(t.TempDir(), "gone"), time.Hour, nil)
	j.Sweep(time.Now())
}
