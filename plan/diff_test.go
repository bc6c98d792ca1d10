package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	digest "github.com/opencontainers/go-digest"
)

func samplePlan() *BuildPlan {
	return &BuildPlan{
		FormatVersion: FormatVersion,
		Application:   Application{Namespace: "pro.magisk", ApplicationID: "pro.magisk", VersionCode: 1, VersionName: "1.0"},
		SDK:           SDK{Min: 24, Target: 34, Compile: 34},
		Variant:       Variant{Name: "release"},
		Dependencies: []Dependency{
			{Name: "a.aar", Reference: "libs/a.aar", Digest: digest.FromString("a")},
			{Name: "b.aar", Reference: "libs/b.aar", Digest: digest.FromString("b")},
			{Name: "c.aar", Reference: "libs/c.aar", Digest: digest.FromString("c")},
		},
	}
}

func TestCompare(t *testing.T) {
	old := samplePlan()
	updated := old.Clone()
	updated.Application.VersionCode = 2
	updated.Variant.Minify = true
	updated.Dependencies = []Dependency{
		{Name: "a.aar", Reference: "libs/a.aar", Digest: digest.FromString("a")},
		{Name: "c.aar", Reference: "libs/c.aar", Digest: digest.FromString("c2")},
		{Name: "d.aar", Reference: "libs/d.aar", Digest: digest.FromString("d")},
	}

	got := Compare(old, updated)
	want := &Diff{
		Added:   []DependencyChange{{Name: "d.aar", Reference: "libs/d.aar", Digest: digest.FromString("d")}},
		Removed: []DependencyChange{{Name: "b.aar", Reference: "libs/b.aar", Digest: digest.FromString("b")}},
		Changed: []DependencyUpdate{{
			Name:         "c.aar",
			OldReference: "libs/c.aar",
			NewReference: "libs/c.aar",
			OldDigest:    digest.FromString("c"),
			NewDigest:    digest.FromString("c2"),
		}},
		Settings: []SettingChange{
			{Field: "application.version_code", Old: "1", New: "2"},
			{Field: "variant.minify", Old: "false", New: "true"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}
	if got.TotalChanges() != 5 {
		t.Errorf("TotalChanges() = %d, want 5", got.TotalChanges())
	}
}

func TestCompare_Identical(t *testing.T) {
	p := samplePlan()
	if d := Compare(p, p.Clone()); !d.IsEmpty() {
		t.Errorf("identical plans differ: %+v", d)
	}
}

func TestCompare_Nil(t *testing.T) {
	d := Compare(nil, samplePlan())
	if len(d.Added) != 3 || len(d.Removed) != 0 {
		t.Errorf("Compare(nil, p) = %+v", d)
	}
	d = Compare(samplePlan(), nil)
	if len(d.Removed) != 3 || len(d.Added) != 0 {
		t.Errorf("Compare(p, nil) = %+v", d)
	}
	if d := Compare(nil, nil); !d.IsEmpty() {
		t.Errorf("Compare(nil, nil) = %+v", d)
	}
}
