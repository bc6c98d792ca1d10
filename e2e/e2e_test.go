// Package e2e runs the buildplan binary against projects on disk and a fake
// Maven repository.
package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/albertocavalcante/go-buildplan/internal/testutil"
	"github.com/albertocavalcante/go-buildplan/plan"
	digest "github.com/opencontainers/go-digest"
)

// binary is the buildplan executable built by TestMain.
var binary string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	goBin, err := exec.LookPath("go")
	if err != nil {
		fmt.Fprintln(os.Stderr, "skipping e2e tests: go toolchain not found")
		return 0
	}
	dir, err := os.MkdirTemp("", "buildplan-e2e-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer os.RemoveAll(dir)

	binary = filepath.Join(dir, "buildplan")
	build := exec.Command(goBin, "build", "-o", binary, "../cmd/buildplan")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build buildplan: %v\n", err)
		return 1
	}
	return m.Run()
}

type result struct {
	code   int
	stdout string
	stderr string
}

// buildplan runs the binary with env added to a minimal environment.
func buildplan(t *testing.T, env []string, args ...string) result {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append([]string{"PATH=" + os.Getenv("PATH"), "HOME=" + t.TempDir()}, env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{stdout: stdout.String(), stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.code = exitErr.ExitCode()
	default:
		t.Fatalf("failed to run buildplan: %v", err)
	}

	for _, out := range []string{res.stdout, res.stderr} {
		if strings.Contains(out, testutil.SecretValue) {
			t.Fatalf("buildplan output leaks the secret value:\n%s", out)
		}
	}
	return res
}

// secretEnv provides both signing secrets through the environment.
var secretEnv = []string{
	"BUILDPLAN_SECRET_RELEASE_STORE=" + testutil.SecretValue,
	"BUILDPLAN_SECRET_RELEASE_KEY=" + testutil.SecretValue,
}

func TestE2E_EvaluateRelease(t *testing.T) {
	dir := t.TempDir()
	configPath := testutil.WriteProject(t, dir, testutil.ReleaseConfig)

	res := buildplan(t, secretEnv, "evaluate", "--config", configPath, "--variant", "release")
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}

	out := filepath.Join(dir, "build", "plan", "release.json")
	p, err := plan.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if p.Application.VersionCode != 55555 || len(p.Dependencies) != 3 {
		t.Errorf("unexpected plan: version code %d, %d dependencies", p.Application.VersionCode, len(p.Dependencies))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte(testutil.SecretValue)) {
		t.Fatal("plan file contains the secret value")
	}

	// The same inputs emit the same bytes
	again := buildplan(t, secretEnv, "evaluate", "--config", configPath, "--variant", "release", "--dry-run")
	if again.code != 0 {
		t.Fatalf("dry run exit code = %d, stderr:\n%s", again.code, again.stderr)
	}
	if again.stdout != string(data) {
		t.Errorf("dry run output differs from the written plan:\n%s\nvs\n%s", again.stdout, data)
	}

	if res := buildplan(t, nil, "verify", "--plan", out); res.code != 0 {
		t.Errorf("verify exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
}

func TestE2E_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		remove   string
		env      []string
		variant  string
		wantCode int
		wantKind string
	}{
		{
			name:     "unknown variant",
			config:   testutil.ReleaseConfig,
			env:      secretEnv,
			variant:  "debug",
			wantCode: 2,
			wantKind: "UnknownVariant",
		},
		{
			name:     "invalid sdk range",
			config:   strings.Replace(testutil.ReleaseConfig, "min_sdk = 24", "min_sdk = 35", 1),
			env:      secretEnv,
			variant:  "release",
			wantCode: 2,
			wantKind: "InvalidRange",
		},
		{
			name:     "missing artifact",
			config:   testutil.ReleaseConfig,
			remove:   "libs/service-6.0.0.aar",
			env:      secretEnv,
			variant:  "release",
			wantCode: 3,
			wantKind: "MissingArtifact",
		},
		{
			name:     "unresolved signing profile",
			config:   testutil.ReleaseConfig,
			env:      secretEnv[:1],
			variant:  "release",
			wantCode: 4,
			wantKind: "UnresolvedSigningProfile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			configPath := testutil.WriteProject(t, dir, tt.config)
			if tt.remove != "" {
				if err := os.Remove(filepath.Join(dir, filepath.FromSlash(tt.remove))); err != nil {
					t.Fatal(err)
				}
			}

			res := buildplan(t, tt.env, "evaluate", "--config", configPath, "--variant", tt.variant)
			if res.code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d, stderr:\n%s", res.code, tt.wantCode, res.stderr)
			}
			if !strings.HasPrefix(res.stderr, tt.wantKind+": ") {
				t.Errorf("stderr = %q, want it to start with %q", res.stderr, tt.wantKind)
			}
			if _, err := os.Stat(filepath.Join(dir, "build")); !os.IsNotExist(err) {
				t.Errorf("failed evaluation left output behind: %v", err)
			}
		})
	}
}

func TestE2E_RemoteRepository(t *testing.T) {
	content := "remote okhttp archive"
	sum := digest.FromString(content)
	files := map[string]string{
		"/maven2/com/squareup/okhttp3/okhttp/4.12.0/okhttp-4.12.0.jar":        content,
		"/maven2/com/squareup/okhttp3/okhttp/4.12.0/okhttp-4.12.0.jar.sha256": sum.Encoded(),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	configPath := testutil.WriteProject(t, dir, testutil.ReleaseConfig+`
implementation("com.squareup.okhttp3:okhttp:4.12.0")
`)
	out := filepath.Join(dir, "release.yaml")

	res := buildplan(t, secretEnv, "evaluate", "-config", configPath, "-variant", "release",
		"-repository", srv.URL+"/maven2", "-cache-dir", t.TempDir(), "-out", out)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}

	p, err := plan.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	d, ok := p.Dependency("com.squareup.okhttp3:okhttp")
	if !ok {
		t.Fatalf("coordinate missing from plan: %+v", p.Dependencies)
	}
	if d.Digest != sum {
		t.Errorf("digest = %s, want %s", d.Digest, sum)
	}

	// Without the repository the coordinate cannot resolve
	res = buildplan(t, secretEnv, "evaluate", "-config", configPath, "-variant", "release", "-dry-run")
	if res.code != 3 || !strings.Contains(res.stderr, "UnresolvedCoordinate") {
		t.Errorf("without repository: exit code %d, stderr:\n%s", res.code, res.stderr)
	}
}
