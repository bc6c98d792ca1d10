// Package testutil writes small on-disk projects for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/albertocavalcante/go-buildplan/credentials"
)

// SecretValue is the value behind both signing aliases in Store. Tests assert
// it never shows up in output.
const SecretValue = "superman"

// ReleaseConfig declares one signed release build type and three local
// archive dependencies.
const ReleaseConfig = `android_application(
    namespace = "pro.magisk",
    application_id = "pro.magisk",
    min_sdk = 24,
    target_sdk = 34,
    compile_sdk = 34,
    version_code = 55555,
    version_name = "master",
)

signing_config(
    name = "release",
    store_file = "main_key.jks",
    store_password = secret("release_store"),
    key_alias = "mikailamin",
    key_password = secret("release_key"),
)

build_type(
    name = "release",
    minify = False,
    signing_config = "release",
    proguard_files = [
        default_proguard_file("proguard-android-optimize.txt"),
        "proguard-rules.pro",
    ],
)

build_features(view_binding = True)

compile_options(source_compatibility = "11", target_compatibility = "11")

implementation(files("libs/core-6.0.0.aar", "libs/service-6.0.0.aar"))
implementation(file_tree(dir = "libs/nio", include = ["*.aar"]))
`

// Artifacts are the dependency files written by WriteProject, relative to the
// project directory.
var Artifacts = map[string]string{
	"libs/core-6.0.0.aar":       "libsu core",
	"libs/service-6.0.0.aar":    "libsu service",
	"libs/nio/nio-6.0.0.aar":    "libsu nio",
	"proguard-rules.pro":        "-keep class pro.magisk.** { *; }\n",
	"main_key.jks":              "not a real key store",
	"libs/nio/README.md":        "excluded by the include pattern",
	"libs/unreferenced-1.0.aar": "never declared",
}

// WriteProject writes config as build.star plus every file in Artifacts under
// dir and returns the config path.
func WriteProject(t testing.TB, dir, config string) string {
	t.Helper()
	for rel, content := range Artifacts {
		WriteFile(t, dir, rel, content)
	}
	return WriteFile(t, dir, "build.star", config)
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t testing.TB, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Store returns a credential store that knows both signing aliases of
// ReleaseConfig.
func Store() *credentials.Map {
	return credentials.NewMap(map[string]string{
		"release_store": SecretValue,
		"release_key":   SecretValue,
	})
}
