package buildplan

import (
	"testing"
	"time"

	"github.com/albertocavalcante/go-buildplan/repository"
)

func TestNewEvalConfig_Validation(t *testing.T) {
	local, err := repository.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"defaults", nil, false},
		{"timeout", []Option{WithTimeout(time.Second)}, false},
		{"negative timeout", []Option{WithTimeout(-time.Second)}, true},
		{"negative concurrency", []Option{WithConcurrency(-1)}, true},
		{"repository and urls", []Option{WithRepository(local), WithRepositories("https://maven.google.com")}, true},
		{"repository only", []Option{WithRepository(local)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newEvalConfig(tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newEvalConfig error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (c.logger == nil || c.cache == nil) {
				t.Error("logger and cache should default to non-nil")
			}
		})
	}
}

func TestRemoteOptions(t *testing.T) {
	c, err := newEvalConfig(WithCacheDir(t.TempDir()), WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	// logger + cache dir + timeout
	if got := len(c.remoteOptions()); got != 3 {
		t.Errorf("remoteOptions() = %d options, want 3", got)
	}
}
