package feed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFieldMap_EmptyPathReturnsDefaults(t *testing.T) {
	m, err := LoadFieldMap("")
	require.NoError(t, err)

	assert.Equal(t, DefaultFieldMap(), m)
}

func TestLoadFieldMap_OverridesListedAttributes(t *testing.T) {
	content := `
fields:
  price:
    - cash_price
    - price
  colour:
    - " exterior_colour "
`
	path := filepath.Join(t.TempDir(), "fields.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := LoadFieldMap(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"cash_price", "price"}, m[AttrPrice])
	assert.Equal(t, []string{"exterior_colour"}, m[AttrColour])
	assert.Equal(t, DefaultFieldMap()[AttrMake], m[AttrMake])
}

func TestLoadFieldMap_MissingFile(t *testing.T) {
	_, err := LoadFieldMap(filepath.Join(t.TempDir(), "missing.yml"))

	assert.Error(t, err)
}

func TestParseFieldMap_UnknownAttribute(t *testing.T) {
	_, err := ParseFieldMap([]byte("fields:\n  horsepower:\n    - bhp\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attribute: horsepower")
}

func TestParseFieldMap_EmptyKeyList(t *testing.T) {
	_, err := ParseFieldMap([]byte("fields:\n  price:\n    - \"  \"\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one source key")
}

func TestParseFieldMap_InvalidYAML(t *testing.T) {
	_, err := ParseFieldMap([]byte("fields: [unclosed"))

	assert.Error(t, err)
}
