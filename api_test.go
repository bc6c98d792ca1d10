package buildplan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/albertocavalcante/go-buildplan/internal/testutil"
	"github.com/albertocavalcante/go-buildplan/plan"
	"github.com/albertocavalcante/go-buildplan/resolve"
	"github.com/google/go-cmp/cmp"
)

const debugBuildType = `
build_type(name = "debug")
`

func writeProject(t *testing.T, cfg string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	return dir, testutil.WriteProject(t, dir, cfg)
}

func TestEvaluateFile(t *testing.T) {
	_, path := writeProject(t, testutil.ReleaseConfig)

	p, err := EvaluateFile(context.Background(), path, "release", WithCredentialStore(testutil.Store()))
	if err != nil {
		t.Fatalf("EvaluateFile failed: %v", err)
	}
	var names []string
	for _, d := range p.Dependencies {
		names = append(names, d.Name)
	}
	want := []string{"core-6.0.0.aar", "service-6.0.0.aar", "nio-6.0.0.aar"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if p.Variant.Signing == nil || p.Variant.Signing.StoreSecret.Reference() != "memory:release_store" {
		t.Errorf("signing = %+v", p.Variant.Signing)
	}
}

func TestEvaluateFile_Errors(t *testing.T) {
	dir, path := writeProject(t, testutil.ReleaseConfig)
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		variant string
		opts    []Option
		want    error
	}{
		{"unknown variant", path, "debug", []Option{WithCredentialStore(testutil.Store())}, ErrUnknownVariant},
		{"no credential store", path, "release", nil, ErrUnresolvedSigningProfile},
		{"missing config", filepath.Join(dir, "nope.star"), "release", nil, ErrMalformedConfig},
		{"bad repository", path, "release", []Option{WithRepositories("ftp://example.com")}, ErrMalformedConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateFile(ctx, tt.path, tt.variant, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir, path := writeProject(t, testutil.ReleaseConfig)
	ctx := context.Background()

	out, err := WriteFile(ctx, path, "release", "", plan.FormatJSON, WithCredentialStore(testutil.Store()))
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if want := filepath.Join(dir, "build", "plan", "release.json"); out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), testutil.SecretValue) {
		t.Error("plan file leaks a secret value")
	}

	p, err := VerifyFile(ctx, out)
	if err != nil {
		t.Fatalf("VerifyFile failed: %v", err)
	}
	if len(p.Dependencies) != 3 {
		t.Errorf("dependencies = %d, want 3", len(p.Dependencies))
	}

	testutil.WriteFile(t, dir, "libs/core-6.0.0.aar", "tampered")
	if _, err := VerifyFile(ctx, out); !errors.Is(err, ErrDependencyConflict) {
		t.Errorf("VerifyFile after edit = %v, want DependencyConflict", err)
	}
}

func TestWriteFile_NoOutputOnFailure(t *testing.T) {
	dir, path := writeProject(t, testutil.ReleaseConfig)
	if err := os.Remove(filepath.Join(dir, "libs", "core-6.0.0.aar")); err != nil {
		t.Fatal(err)
	}

	_, err := WriteFile(context.Background(), path, "release", "", plan.FormatJSON, WithCredentialStore(testutil.Store()))
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("error = %v, want MissingArtifact", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "build")); !os.IsNotExist(err) {
		t.Errorf("no output should be written, stat err = %v", err)
	}
}

func TestEvaluateAll(t *testing.T) {
	_, path := writeProject(t, testutil.ReleaseConfig+debugBuildType)

	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	cache := resolve.NewCache()
	plans, err := EvaluateAll(context.Background(), path,
		WithCredentialStore(testutil.Store()),
		WithCache(cache),
		WithConcurrency(2),
		WithProgress(func(e ProgressEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("EvaluateAll failed: %v", err)
	}
	if len(plans) != 2 || plans["release"] == nil || plans["debug"] == nil {
		t.Fatalf("plans = %v", plans)
	}
	if plans["debug"].Variant.Signing != nil {
		t.Error("debug should be unsigned")
	}
	if len(plans["debug"].Warnings) != 0 {
		t.Errorf("debug warnings = %q", plans["debug"].Warnings)
	}
	if len(events) != 4 {
		t.Errorf("progress events = %d, want 4", len(events))
	}
	// Both variants hash the same three files once.
	if cache.Len() != 3 {
		t.Errorf("cache entries = %d, want 3", cache.Len())
	}
}

func TestEvaluateAll_Failure(t *testing.T) {
	_, path := writeProject(t, testutil.ReleaseConfig+debugBuildType)
	_, err := EvaluateAll(context.Background(), path)
	if !errors.Is(err, ErrUnresolvedSigningProfile) {
		t.Errorf("error = %v, want UnresolvedSigningProfile", err)
	}
}

func TestEvaluateFile_Coordinates(t *testing.T) {
	repoDir := t.TempDir()
	testutil.WriteFile(t, repoDir, "com/github/topjohnwu/libsu/io/6.0.0/io-6.0.0.aar", "libsu io")

	cfg := testutil.ReleaseConfig + `implementation("com.github.topjohnwu.libsu:io:6.0.0")` + "\n"
	_, path := writeProject(t, cfg)

	p, err := EvaluateFile(context.Background(), path, "release",
		WithCredentialStore(testutil.Store()),
		WithRepositories("file://"+filepath.ToSlash(repoDir)),
	)
	if err != nil {
		t.Fatalf("EvaluateFile failed: %v", err)
	}
	d, ok := p.Dependency("com.github.topjohnwu.libsu:io")
	if !ok {
		t.Fatalf("coordinate missing from plan: %+v", p.Dependencies)
	}
	if d.Kind != "coordinate" || d.Source == "" {
		t.Errorf("dependency = %+v", d)
	}

	_, err = EvaluateFile(context.Background(), path, "release", WithCredentialStore(testutil.Store()))
	if !errors.Is(err, ErrUnresolvedCoordinate) {
		t.Errorf("without repositories error = %v, want UnresolvedCoordinate", err)
	}
}

func TestVariants(t *testing.T) {
	_, path := writeProject(t, testutil.ReleaseConfig+debugBuildType)
	got, err := Variants(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"release", "debug"}, got); diff != "" {
		t.Errorf("Variants mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultPlanPath(t *testing.T) {
	cfg := filepath.Join("proj", "build.star")
	if got, want := DefaultPlanPath(cfg, "release", plan.FormatJSON), filepath.Join("proj", "build", "plan", "release.json"); got != want {
		t.Errorf("DefaultPlanPath = %q, want %q", got, want)
	}
	if got, want := DefaultPlanPath(cfg, "debug", plan.FormatYAML), filepath.Join("proj", "build", "plan", "debug.yaml"); got != want {
		t.Errorf("DefaultPlanPath = %q, want %q", got, want)
	}
}
