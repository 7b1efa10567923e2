package iocfixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestTemplateWatch verifies the stopper-driven watch loop notices changed
// sources and shuts down cleanly
func TestTemplateWatch(t *testing.T) {
	tmpDir := t.TempDir()
	motor := filepath.Join(tmpDir, "motor.db")
	if err := os.WriteFile(motor, []byte("record(ai, \"$(P)RBV\") {}\n"), 0o644); err != nil {
		t.Fatalf("Failed to create template: %v", err)
	}

	// Test 1: Normal watch and stop
	t.Run("NormalOperation", func(t *testing.T) {
		w, err := watchTemplates(context.Background(), []Template{{Path: motor}}, zerolog.Nop())
		if err != nil {
			t.Fatalf("watchTemplates failed: %v", err)
		}

		if stale := w.Stale(); len(stale) != 0 {
			t.Errorf("Expected no stale templates, got %v", stale)
		}

		// Stop should work without hanging
		done := make(chan error, 1)
		go func() {
			done <- w.stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("stop failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("stop took too long")
		}
	})

	// Test 2: Replacing the file by rename, as editors do
	t.Run("ReplacedByRename", func(t *testing.T) {
		w, err := watchTemplates(context.Background(), []Template{{Path: motor}}, zerolog.Nop())
		if err != nil {
			t.Fatalf("watchTemplates failed: %v", err)
		}
		defer func() { _ = w.stop() }()

		tmp := filepath.Join(tmpDir, ".motor.db.swp")
		if err := os.WriteFile(tmp, []byte("record(ai, \"$(P)VAL\") {}\n"), 0o644); err != nil {
			t.Fatalf("Failed to write replacement: %v", err)
		}
		if err := os.Rename(tmp, motor); err != nil {
			t.Fatalf("Failed to rename replacement: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if stale := w.Stale(); len(stale) == 1 && stale[0] == motor {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Errorf("Expected %s to be reported stale, got %v", motor, w.Stale())
	})

	// Test 3: The watch outlives the context it was started with
	t.Run("ContextCancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		w, err := watchTemplates(ctx, []Template{{Path: motor}}, zerolog.Nop())
		if err != nil {
			t.Fatalf("watchTemplates failed: %v", err)
		}
		defer func() { _ = w.stop() }()

		cancel()
		time.Sleep(20 * time.Millisecond)

		if w.sctx.IsStopping() {
			t.Error("watch stopped with the setup context")
		}
	})

	// Test 4: A template in a missing directory cannot be watched
	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := watchTemplates(context.Background(), []Template{{Path: filepath.Join(tmpDir, "nope", "x.db")}}, zerolog.Nop())
		if err == nil {
			t.Fatal("Expected an error for a missing directory")
		}
	})
}
