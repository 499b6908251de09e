package labels

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObject(t *testing.T) {
	table, err := Parse(strings.NewReader(`{"0": "tench", "1": "goldfish", "999": "toilet tissue"}`))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	name, ok := table.Name(999)
	assert.True(t, ok)
	assert.Equal(t, "toilet tissue", name)

	_, ok = table.Name(2)
	assert.False(t, ok)
}

func TestParseArray(t *testing.T) {
	table, err := Parse(strings.NewReader(` ["tench", "goldfish"] `))
	require.NoError(t, err)

	assert.Equal(t, Table{0: "tench", 1: "goldfish"}, table)
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":        "",
		"bad json":     `{"0": `,
		"bad key":      `{"zero": "tench"}`,
		"negative key": `{"-1": "tench"}`,
		"wrong type":   `{"0": 5}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imagenet_classes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"0": "tench"}`), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Table{0: "tench"}, table)
}

func TestLoadFailuresAreModelLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, model.ErrModelLoad)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`nope`), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, model.ErrModelLoad)
}

func TestNilTable(t *testing.T) {
	var table Table
	_, ok := table.Name(0)
	assert.False(t, ok)
}
