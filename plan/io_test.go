package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"toml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestFormatForPath(t *testing.T) {
	if FormatForPath("plan/release.yaml") != FormatYAML || FormatForPath("x.YML") != FormatYAML {
		t.Error("yaml extensions should select YAML")
	}
	if FormatForPath("plan/release.json") != FormatJSON || FormatForPath("plan") != FormatJSON {
		t.Error("other extensions should select JSON")
	}
}

func TestMarshal_JSONLayout(t *testing.T) {
	data, err := Marshal(samplePlan(), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "{\n  \"formatVersion\": 1,\n") {
		t.Errorf("unexpected JSON prefix:\n%s", s)
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Error("JSON should end with a newline")
	}
	if strings.Contains(s, `<`) || strings.Contains(s, `&`) {
		t.Error("HTML escaping should be disabled")
	}
}

func TestMarshal_Errors(t *testing.T) {
	if _, err := Marshal(nil, FormatJSON); err == nil {
		t.Error("expected error for nil plan")
	}
	if _, err := Marshal(samplePlan(), Format("toml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad json":      `{"formatVersion": `,
		"bad yaml":      "formatVersion: [",
		"wrong version": `{"formatVersion": 99}`,
		"missing":       `{}`,
	}
	for name, data := range tests {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWriteFile_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build", "plan", "release.json")

	if err := WriteFile(path, samplePlan(), FormatJSON); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	p, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(p.Dependencies) != 3 {
		t.Errorf("dependencies = %d, want 3", len(p.Dependencies))
	}

	// A failed write keeps the previous plan and leaves no temp files.
	if err := WriteFile(path, samplePlan(), Format("toml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "release.json" {
		t.Errorf("plan dir entries = %v, want only release.json", entries)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
