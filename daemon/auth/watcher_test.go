package auth

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xpipe_auth")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}

	changes := make(chan Credentials, 4)
	w, err := NewWatcher(path, Local("first"), func(c Credentials) { changes <- c },
		WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("second\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.AuthFileContent != "second" {
			t.Errorf("reloaded content = %q, want %q", c.AuthFileContent, "second")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xpipe_auth")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}

	changes := make(chan Credentials, 4)
	w, err := NewWatcher(path, Local("first"), func(c Credentials) { changes <- c },
		WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "unrelated"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Same content does not count as a change either.
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		t.Errorf("unexpected reload: %q", c.AuthFileContent)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Close(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xpipe_auth")

	w, err := NewWatcher(path, Credentials{}, func(Credentials) {})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWatcher_CloseWaitsForCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xpipe_auth")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var running, after atomic.Int32
	var isClosed atomic.Bool
	w, err := NewWatcher(path, Local("first"), func(Credentials) {
		if isClosed.Load() {
			after.Add(1)
			return
		}
		if running.Add(1) == 1 {
			close(entered)
			<-release
		}
		running.Add(-1)
	}, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	closed := make(chan struct{})
	go func() {
		_ = w.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the callback finished")
	}
	if n := running.Load(); n != 0 {
		t.Errorf("callbacks still running after Close: %d", n)
	}

	// Further rewrites after Close must not reach onChange.
	isClosed.Store(true)
	if err := os.WriteFile(path, []byte("third"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if n := after.Load(); n != 0 {
		t.Errorf("onChange called %d times after Close", n)
	}
}
