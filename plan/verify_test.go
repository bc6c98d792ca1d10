package plan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/albertocavalcante/go-buildplan/internal/testutil"
)

func TestVerify(t *testing.T) {
	inv, dir := newInvocation(t, testutil.ReleaseConfig, testutil.Store())
	p, err := inv.Evaluate(context.Background(), "release")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := Verify(ctx, p); err != nil {
		t.Fatalf("Verify on a fresh plan failed: %v", err)
	}

	testutil.WriteFile(t, dir, "libs/core-6.0.0.aar", "rebuilt core")
	testutil.WriteFile(t, dir, "libs/service-6.0.0.aar", "")
	if err := os.Remove(filepath.Join(dir, "libs", "nio", "nio-6.0.0.aar")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, dir, "proguard-rules.pro", "-dontobfuscate\n")

	err = Verify(ctx, p)
	for _, kind := range []error{
		errdefs.ErrDependencyConflict,
		errdefs.ErrEmptyArtifact,
		errdefs.ErrMissingArtifact,
	} {
		if !errors.Is(err, kind) {
			t.Errorf("Verify error should include %v: %v", kind, err)
		}
	}
	if errdefs.ExitCode(err) != errdefs.ExitResolution {
		t.Errorf("ExitCode = %d, want %d", errdefs.ExitCode(err), errdefs.ExitResolution)
	}
}

func TestVerify_Nil(t *testing.T) {
	if err := Verify(context.Background(), nil); err == nil {
		t.Error("expected error for nil plan")
	}
}
