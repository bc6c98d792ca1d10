package label

import (
	"strings"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		input     string
		wantName  string
		wantVer   string
		wantExt   string
		wantError string
	}{
		{input: "androidx.appcompat:appcompat:1.6.1", wantName: "androidx.appcompat:appcompat", wantVer: "1.6.1"},
		{input: "com.google.android.material:material:1.12.0", wantName: "com.google.android.material:material", wantVer: "1.12.0"},
		{input: "com.github.topjohnwu.libsu:core:6.0.0@aar", wantName: "com.github.topjohnwu.libsu:core", wantVer: "6.0.0", wantExt: "aar"},
		{input: "androidx.core:core-ktx:1.13.0-alpha01", wantName: "androidx.core:core-ktx", wantVer: "1.13.0-alpha01"},
		{input: "", wantError: "empty"},
		{input: "a:b", wantError: "want group:artifact:version"},
		{input: "a:b:c:d", wantError: "want group:artifact:version"},
		{input: "a:b:1.0@", wantError: "empty extension"},
		{input: "a..b:c:1.0", wantError: "invalid group"},
		{input: "a:b c:1.0", wantError: "invalid artifact"},
		{input: "a:..:1.0", wantError: "invalid artifact"},
		{input: "a:.:1.0", wantError: "invalid artifact"},
		{input: "a:.hidden:1.0", wantError: "invalid artifact"},
		{input: "a:-lib:1.0", wantError: "invalid artifact"},
		{input: "androidx.annotation:annotation-jvm:1.8.0", wantName: "androidx.annotation:annotation-jvm", wantVer: "1.8.0"},
		{input: "a:b:1.+", wantError: "invalid version"},
		{input: "a:b:1.0@A R", wantError: "invalid extension"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := ParseCoordinate(tt.input)
			if tt.wantError != "" {
				if err == nil {
					t.Fatalf("ParseCoordinate(%q) succeeded, want error containing %q", tt.input, tt.wantError)
				}
				if !strings.Contains(err.Error(), tt.wantError) {
					t.Errorf("error = %q, want substring %q", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCoordinate(%q) error: %v", tt.input, err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
			if c.Version() != tt.wantVer {
				t.Errorf("Version() = %q, want %q", c.Version(), tt.wantVer)
			}
			if c.Extension() != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", c.Extension(), tt.wantExt)
			}
			if c.String() != tt.input {
				t.Errorf("String() = %q, want %q", c.String(), tt.input)
			}
		})
	}
}

func TestCoordinate_RepositoryPath(t *testing.T) {
	c := MustCoordinate("androidx.appcompat:appcompat:1.6.1")
	if got, want := c.RepositoryPath("aar"), "androidx/appcompat/appcompat/1.6.1/appcompat-1.6.1.aar"; got != want {
		t.Errorf("RepositoryPath = %q, want %q", got, want)
	}
	if got := c.Extensions(); len(got) != 2 || got[0] != "aar" || got[1] != "jar" {
		t.Errorf("Extensions = %v, want [aar jar]", got)
	}

	explicit := MustCoordinate("g:a:1.0@zip")
	if got := explicit.Extensions(); len(got) != 1 || got[0] != "zip" {
		t.Errorf("Extensions = %v, want [zip]", got)
	}
}

func TestCoordinate_Compare(t *testing.T) {
	a := MustCoordinate("g:a:1.2.0")
	b := MustCoordinate("g:a:1.10.0")
	if a.Compare(b) >= 0 {
		t.Errorf("expected 1.2.0 < 1.10.0")
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected 1.10.0 > 1.2.0")
	}
	if a.Compare(MustCoordinate("g:a:1.2")) != 0 {
		t.Errorf("expected 1.2.0 == 1.2")
	}
}

func TestIsCoordinate(t *testing.T) {
	tests := map[string]bool{
		"androidx.appcompat:appcompat:1.6.1": true,
		"libs/core-6.0.0.aar":                false,
		"C:/libs/core.aar":                   false,
		"core.aar":                           false,
		"a:b":                                false,
	}
	for in, want := range tests {
		if got := IsCoordinate(in); got != want {
			t.Errorf("IsCoordinate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMustCoordinatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustCoordinate("not a coordinate")
}
