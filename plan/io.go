package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// planPermissions is the file mode of written plans. Plans hold no secret
// values, only handles.
const planPermissions = 0o644

// Format selects the serialization of a plan.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown plan format %q: want json or yaml", s)
	}
}

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal serializes p deterministically. Field order follows the struct
// layout and map keys are sorted by both encoders.
func Marshal(p *BuildPlan, format Format) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil plan")
	}
	var buf bytes.Buffer
	switch format {
	case FormatJSON, "":
		encoder := json.NewEncoder(&buf)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(p); err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(p); err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown plan format %q", format)
	}
	return buf.Bytes(), nil
}

// Parse reconstructs a plan from its JSON or YAML serialization. Secret
// handles come back as references only.
func Parse(data []byte) (*BuildPlan, error) {
	var p BuildPlan
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("failed to parse plan YAML: %w", err)
		}
	}

	if p.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported plan format version %d (want %d)", p.FormatVersion, FormatVersion)
	}
	if p.Dependencies == nil {
		p.Dependencies = []Dependency{}
	}
	return &p, nil
}

// ReadFile reads and parses a plan file.
func ReadFile(path string) (*BuildPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return Parse(data)
}

// WriteFile serializes p to path atomically: the data goes to a temporary file
// in the same directory which is then renamed into place, so a failure never
// leaves a partial plan behind. Missing parent directories are created.
func WriteFile(path string, p *BuildPlan, format Format) error {
	data, err := Marshal(p, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plan directory: %w", err)
	}
	return writeFileAtomic(path, data, planPermissions)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
