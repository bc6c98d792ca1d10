package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled at any level")
	}
	logger.With("k", "v").WithGroup("g").Error("dropped")
}

func TestOrDiscard(t *testing.T) {
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, nil))
	if OrDiscard(custom) != custom {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
	if OrDiscard(nil) == nil {
		t.Error("OrDiscard(nil) returned nil")
	}
}
