// Package labels loads the class-index to display-name table.
package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Brownie44l1/imagenet-api/internal/model"
)

// Table maps class indices to names. A nil Table has no entries.
type Table map[int]string

func (t Table) Name(index int) (string, bool) {
	name, ok := t[index]
	return name, ok
}

func (t Table) Len() int { return len(t) }

// Load reads a label table from a JSON file. Failures wrap model.ErrModelLoad.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open labels: %v", model.ErrModelLoad, err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrModelLoad, path, err)
	}
	return t, nil
}

// Parse accepts either an object keyed by string-encoded indices
// ({"0": "tench", ...}) or an array of names.
func Parse(r io.Reader) (Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("labels are empty")
	}

	if raw[0] == '[' {
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("failed to parse labels: %w", err)
		}
		t := make(Table, len(names))
		for i, name := range names {
			t[i] = name
		}
		return t, nil
	}

	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	t := make(Table, len(byKey))
	for key, name := range byKey {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("label key %q is not a class index", key)
		}
		t[i] = name
	}
	return t, nil
}
