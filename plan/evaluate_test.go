package plan

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/albertocavalcante/go-buildplan/config"
	"github.com/albertocavalcante/go-buildplan/credentials"
	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/albertocavalcante/go-buildplan/internal/testutil"
	"github.com/albertocavalcante/go-buildplan/resolve"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	digest "github.com/opencontainers/go-digest"
)

var planOpts = cmp.Options{
	cmp.AllowUnexported(credentials.SecretHandle{}),
	cmpopts.EquateEmpty(),
}

// newInvocation loads cfg from a fresh project directory.
func newInvocation(t *testing.T, cfg string, store credentials.Store, opts ...Option) (*Invocation, string) {
	t.Helper()
	dir := t.TempDir()
	path := testutil.WriteProject(t, dir, cfg)
	return invocationFor(t, path, store, opts...), dir
}

func invocationFor(t *testing.T, path string, store credentials.Store, opts ...Option) *Invocation {
	t.Helper()
	project, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	resolver, err := resolve.New(project.Dir())
	if err != nil {
		t.Fatal(err)
	}
	inv, err := NewInvocation(project, resolver, store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return inv
}

func TestEvaluate_Release(t *testing.T) {
	inv, dir := newInvocation(t, testutil.ReleaseConfig, testutil.Store())
	if inv.State() != Unevaluated {
		t.Fatalf("initial state = %s", inv.State())
	}

	p, err := inv.Evaluate(context.Background(), "release")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if inv.State() != Merged {
		t.Errorf("state = %s, want merged", inv.State())
	}

	dep := func(rel, name, content string) Dependency {
		return Dependency{
			Name:          name,
			Configuration: config.Implementation,
			Kind:          "file",
			Reference:     rel,
			Path:          filepath.Join(dir, filepath.FromSlash(rel)),
			Digest:        digest.FromString(content),
			Size:          int64(len(content)),
		}
	}
	want := &BuildPlan{
		FormatVersion: FormatVersion,
		Config:        filepath.Join(dir, "build.star"),
		Application: Application{
			Namespace:     "pro.magisk",
			ApplicationID: "pro.magisk",
			VersionCode:   55555,
			VersionName:   "master",
		},
		SDK: SDK{Min: 24, Target: 34, Compile: 34},
		Variant: Variant{
			Name: "release",
			RuleFiles: []RuleFile{
				{Ref: "sdk:proguard-android-optimize.txt"},
				{
					Ref:    "proguard-rules.pro",
					Path:   filepath.Join(dir, "proguard-rules.pro"),
					Digest: digest.FromString(testutil.Artifacts["proguard-rules.pro"]),
				},
			},
			Signing: &Signing{
				Profile:     "release",
				StoreFile:   filepath.Join(dir, "main_key.jks"),
				KeyAlias:    "mikailamin",
				StoreSecret: credentials.NewSecretHandle("memory", "release_store"),
				KeySecret:   credentials.NewSecretHandle("memory", "release_key"),
			},
		},
		Features:       map[string]bool{"view_binding": true},
		CompileOptions: config.CompileOptions{SourceCompatibility: "11", TargetCompatibility: "11"},
		Dependencies: []Dependency{
			dep("libs/core-6.0.0.aar", "core-6.0.0.aar", "libsu core"),
			dep("libs/service-6.0.0.aar", "service-6.0.0.aar", "libsu service"),
			dep("libs/nio/nio-6.0.0.aar", "nio-6.0.0.aar", "libsu nio"),
		},
	}
	if diff := cmp.Diff(want, p, planOpts); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	// The returned plan is a copy.
	p.Dependencies[0].Name = "mutated"
	if got := inv.Plan().Dependencies[0].Name; got != "core-6.0.0.aar" {
		t.Errorf("mutating the returned plan changed the invocation: %q", got)
	}
}

func TestEvaluate_EmitDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteProject(t, dir, testutil.ReleaseConfig)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var outputs [2]bytes.Buffer
			for i := range outputs {
				inv := invocationFor(t, path, testutil.Store())
				if _, err := inv.Evaluate(context.Background(), "release"); err != nil {
					t.Fatal(err)
				}
				if err := inv.Emit(&outputs[i], format); err != nil {
					t.Fatalf("Emit failed: %v", err)
				}
				if inv.State() != Emitted {
					t.Errorf("state = %s, want emitted", inv.State())
				}
			}
			if !bytes.Equal(outputs[0].Bytes(), outputs[1].Bytes()) {
				t.Errorf("repeated emission differs:\n%s\n---\n%s", outputs[0].String(), outputs[1].String())
			}
			out := outputs[0].String()
			if strings.Contains(out, testutil.SecretValue) {
				t.Errorf("plan leaks a secret value:\n%s", out)
			}
			if !strings.Contains(out, "memory:release_store") {
				t.Errorf("plan should carry the secret reference:\n%s", out)
			}
		})
	}
}

func TestEvaluate_RoundTrip(t *testing.T) {
	inv, _ := newInvocation(t, testutil.ReleaseConfig, testutil.Store())
	p, err := inv.Evaluate(context.Background(), "release")
	if err != nil {
		t.Fatal(err)
	}
	for _, format := range []Format{FormatJSON, FormatYAML} {
		data, err := Marshal(p, format)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", format, err)
		}
		back, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse(%s) failed: %v", format, err)
		}
		if diff := cmp.Diff(p, back, planOpts); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", format, diff)
		}
	}
}

func TestEvaluate_MissingDependency(t *testing.T) {
	inv, dir := newInvocation(t, testutil.ReleaseConfig, testutil.Store())
	if err := os.Remove(filepath.Join(dir, "libs", "service-6.0.0.aar")); err != nil {
		t.Fatal(err)
	}

	_, err := inv.Evaluate(context.Background(), "release")
	if !errors.Is(err, errdefs.ErrMissingArtifact) {
		t.Fatalf("error = %v, want MissingArtifact", err)
	}
	if errdefs.ExitCode(err) != errdefs.ExitResolution {
		t.Errorf("ExitCode = %d, want %d", errdefs.ExitCode(err), errdefs.ExitResolution)
	}
	if inv.State() != Validated {
		t.Errorf("state = %s, want validated", inv.State())
	}

	out := filepath.Join(dir, "build", "plan", "release.json")
	if err := inv.WriteFile(out, FormatJSON); err == nil {
		t.Error("WriteFile should refuse an unmerged invocation")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("no plan should be written, stat err = %v", err)
	}
}

func TestEvaluate_MissingRuleFile(t *testing.T) {
	inv, dir := newInvocation(t, testutil.ReleaseConfig, testutil.Store())
	if err := os.Remove(filepath.Join(dir, "proguard-rules.pro")); err != nil {
		t.Fatal(err)
	}
	_, err := inv.Evaluate(context.Background(), "release")
	if !errors.Is(err, errdefs.ErrMissingArtifact) {
		t.Fatalf("error = %v, want MissingArtifact", err)
	}
}

func TestEvaluate_UnknownVariant(t *testing.T) {
	inv, _ := newInvocation(t, testutil.ReleaseConfig, testutil.Store())
	_, err := inv.Evaluate(context.Background(), "debug")
	if !errors.Is(err, errdefs.ErrUnknownVariant) {
		t.Fatalf("error = %v, want UnknownVariant", err)
	}
	if errdefs.ExitCode(err) != errdefs.ExitConfig {
		t.Errorf("ExitCode = %d, want %d", errdefs.ExitCode(err), errdefs.ExitConfig)
	}
	if inv.State() != Unevaluated {
		t.Errorf("state = %s, want unevaluated", inv.State())
	}

	// A failed invocation cannot be retried.
	if _, err := inv.Evaluate(context.Background(), "release"); err == nil {
		t.Error("Evaluate after failure should fail")
	}
}

func TestEvaluate_Signing(t *testing.T) {
	tests := []struct {
		name  string
		store credentials.Store
	}{
		{"no store", nil},
		{"missing alias", credentials.NewMap(map[string]string{"release_store": testutil.SecretValue})},
		{"empty value", credentials.NewMap(map[string]string{"release_store": testutil.SecretValue, "release_key": ""})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, _ := newInvocation(t, testutil.ReleaseConfig, tt.store)
			_, err := inv.Evaluate(context.Background(), "release")
			if !errors.Is(err, errdefs.ErrUnresolvedSigningProfile) {
				t.Fatalf("error = %v, want UnresolvedSigningProfile", err)
			}
			if errdefs.ExitCode(err) != errdefs.ExitSigning {
				t.Errorf("ExitCode = %d, want %d", errdefs.ExitCode(err), errdefs.ExitSigning)
			}
			if strings.Contains(err.Error(), testutil.SecretValue) {
				t.Errorf("error leaks a secret value: %v", err)
			}
		})
	}
}

func TestEvaluate_UnsignedRelease(t *testing.T) {
	unsigned := strings.Replace(testutil.ReleaseConfig, "    signing_config = \"release\",\n", "", 1)

	inv, _ := newInvocation(t, unsigned, nil)
	p, err := inv.Evaluate(context.Background(), "release")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if p.Variant.Signing != nil {
		t.Errorf("unsigned variant has signing %+v", p.Variant.Signing)
	}
	if len(p.Warnings) != 1 || !strings.Contains(p.Warnings[0], "unsigned") {
		t.Errorf("Warnings = %q", p.Warnings)
	}

	strict, _ := newInvocation(t, unsigned, nil, WithStrictSigning(true))
	_, err = strict.Evaluate(context.Background(), "release")
	if !errors.Is(err, errdefs.ErrUnresolvedSigningProfile) {
		t.Errorf("strict error = %v, want UnresolvedSigningProfile", err)
	}
}

func TestInvocation_Transitions(t *testing.T) {
	inv, dir := newInvocation(t, testutil.ReleaseConfig, testutil.Store())

	var buf bytes.Buffer
	if err := inv.Emit(&buf, FormatJSON); err == nil {
		t.Error("Emit before Evaluate should fail")
	}
	if _, err := inv.Evaluate(context.Background(), "release"); err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Evaluate(context.Background(), "release"); err == nil {
		t.Error("second Evaluate should fail")
	}

	out := filepath.Join(dir, "build", "plan", "release.json")
	if err := inv.WriteFile(out, FormatJSON); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if inv.State() != Emitted {
		t.Errorf("state = %s, want emitted", inv.State())
	}
	if err := inv.Emit(&buf, FormatJSON); err == nil {
		t.Error("Emit after Emitted should fail")
	}

	p, err := ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if diff := cmp.Diff(inv.Plan(), p, planOpts); diff != "" {
		t.Errorf("written plan mismatch (-want +got):\n%s", diff)
	}
}

func TestIsAllowedTransition(t *testing.T) {
	states := []State{Unevaluated, Validated, Merged, Emitted}
	for i, from := range states {
		for j, to := range states {
			want := j == i+1
			if got := isAllowedTransition(from, to); got != want {
				t.Errorf("isAllowedTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestNewInvocation_Validation(t *testing.T) {
	resolver, err := resolve.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewInvocation(nil, resolver, nil); err == nil {
		t.Error("expected error for nil project")
	}
	project, err := config.LoadContent("build.star", []byte(testutil.ReleaseConfig))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewInvocation(project, nil, nil); err == nil {
		t.Error("expected error for nil resolver")
	}
}
