package roles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FinnishColumns(t *testing.T) {
	cols := []string{"palveluntuottaja", "vuosi", "korvaus_euroa"}
	m, err := Resolve(cols, DefaultKeywords(), nil)
	require.NoError(t, err)
	assert.Equal(t, "palveluntuottaja", m[Provider])
	assert.Equal(t, "vuosi", m[Year])
	assert.Equal(t, "korvaus_euroa", m[Amount])
}

func TestResolve_EnglishColumns(t *testing.T) {
	cols := []string{"service_provider", "release_year", "gross_amount"}
	m, err := Resolve(cols, DefaultKeywords(), nil)
	require.NoError(t, err)
	assert.Equal(t, "service_provider", m[Provider])
	assert.Equal(t, "release_year", m[Year])
	assert.Equal(t, "gross_amount", m[Amount])
}

func TestResolve_AmbiguousReturnsPartialMapping(t *testing.T) {
	cols := []string{"palveluntuottaja", "jotain", "muuta"}
	m, err := Resolve(cols, DefaultKeywords(), nil)
	require.Error(t, err)

	var amb *AmbiguousMappingError
	require.True(t, errors.As(err, &amb))
	assert.ElementsMatch(t, []Role{Year, Amount}, amb.MissingRoles)
	assert.Equal(t, cols, amb.Columns)

	// Partial mapping is still usable for manual completion.
	assert.Equal(t, "palveluntuottaja", m[Provider])
	assert.False(t, m.IsComplete())
}

func TestResolve_PrefersUnassignedColumn(t *testing.T) {
	// "palvelukorvaus" matches provider (palvelu) and amount (korva);
	// provider claims it first, so amount falls through to the next match.
	cols := []string{"palvelukorvaus", "vuosi", "summa_euroa"}
	m, err := Resolve(cols, DefaultKeywords(), nil)
	require.NoError(t, err)
	assert.Equal(t, "palvelukorvaus", m[Provider])
	assert.Equal(t, "summa_euroa", m[Amount])
}

func TestResolve_ReusesColumnOnlyWithoutAlternative(t *testing.T) {
	cols := []string{"palvelukorvaus_euroa", "vuosi"}
	m, err := Resolve(cols, DefaultKeywords(), nil)
	require.NoError(t, err)
	// No unclaimed amount candidate exists, so the provider column is reused.
	assert.Equal(t, "palvelukorvaus_euroa", m[Provider])
	assert.Equal(t, "palvelukorvaus_euroa", m[Amount])
}

func TestResolve_OverridesWin(t *testing.T) {
	cols := []string{"toimipiste", "vuosi", "korvaus"}
	m, err := Resolve(cols, DefaultKeywords(), Mapping{Provider: "toimipiste"})
	require.NoError(t, err)
	assert.Equal(t, "toimipiste", m[Provider])
	assert.Equal(t, "vuosi", m[Year])
}

func TestResolve_OverrideUnknownColumn(t *testing.T) {
	_, err := Resolve([]string{"vuosi"}, DefaultKeywords(), Mapping{Provider: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a known column")
}

func TestLoadKeywords_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amount:\n  - suorakorvaus\n"), 0o644))

	kw, err := LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"suorakorvaus"}, kw[Amount])
	assert.Equal(t, DefaultKeywords()[Provider], kw[Provider])
}

func TestLoadKeywords_MissingFile(t *testing.T) {
	_, err := LoadKeywords(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
