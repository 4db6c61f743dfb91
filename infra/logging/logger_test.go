package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	l, err := New("debug")
	if err != nil {
		t.Fatalf("New(debug): %v", err)
	}
	_ = l.Sync()
}

func TestNewWithFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ledger.log")

	l, err := NewWithFile("info", path)
	if err != nil {
		t.Fatalf("NewWithFile: %v", err)
	}
	l.Info("order accepted")
	l.Debug("filtered out")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"order accepted"`) || !strings.Contains(out, `"level":"INFO"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
	if strings.Contains(out, "filtered out") {
		t.Fatalf("debug entry should be filtered at info level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected a no-op logger")
	}
}
