package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ridoystarlord/discontented/schema"
	"gopkg.in/yaml.v3"
)

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// decode reads JSON or YAML into v. YAML is normalized through JSON so the
// schema types only carry json tags.
func decode(filename string, data []byte, v any) error {
	if isYAML(filename) {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("unmarshalling YAML: %w", err)
		}
		raw, err := json.Marshal(generic)
		if err != nil {
			return fmt.Errorf("converting YAML: %w", err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshalling JSON: %w", err)
	}
	return nil
}

func encode(filename string, v any) ([]byte, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	if !isYAML(filename) {
		return append(raw, '\n'), nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// writeAtomic writes data to a temp file next to filename and renames it
// into place.
func writeAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("renaming %s: %w", filename, err)
	}
	return nil
}

// LoadSnapshot reads the persisted schema snapshot. A missing file returns
// nil, which callers treat as the first migration.
func LoadSnapshot(filename string) (*schema.Snapshot, error) {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	var snap schema.Snapshot
	if err := decode(filename, data, &snap); err != nil {
		return nil, fmt.Errorf("schema file %s: %w", filename, err)
	}
	return &snap, nil
}

// SaveSnapshot atomically replaces the schema snapshot.
func SaveSnapshot(filename string, snap schema.Snapshot) error {
	data, err := encode(filename, snap)
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	return writeAtomic(filename, data)
}

// LoadStore reads an exported store from a JSON or YAML file.
func LoadStore(filename string) (*schema.Store, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var store schema.Store
	if err := decode(filename, data, &store); err != nil {
		return nil, fmt.Errorf("store file %s: %w", filename, err)
	}
	return &store, nil
}

// SaveStore writes an exported store as JSON or YAML depending on the extension.
func SaveStore(filename string, store schema.Store) error {
	data, err := encode(filename, store)
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	return writeAtomic(filename, data)
}
