package titler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledPolicy(t *testing.T) {
	t.Parallel()

	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Version)
	assert.Equal(t, "ko", p.Lang)
	assert.NotEmpty(t, p.RefusalPhrase)
	assert.NotEmpty(t, p.Guardrails)
	assert.NotEmpty(t, p.FewShot)
	assert.True(t, p.PriorityRules.PreferMusicAttribution)
}

func TestSpecialCaseVariants(t *testing.T) {
	t.Parallel()

	p, err := LoadPolicy("")
	require.NoError(t, err)
	require.Len(t, p.SpecialCases, 2)

	music, ok := p.SpecialCases[0].(MusicRecognizedCase)
	require.True(t, ok)
	assert.Contains(t, music.Template, "{artist}")
	assert.Contains(t, music.Template, "{title}")

	_, ok = p.SpecialCases[1].(RainDominantCase)
	assert.True(t, ok)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadPolicyMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policyVersion: [broken"), 0o644))
	_, err := LoadPolicy(path)
	assert.Error(t, err)
}

func TestLoadPolicyUnknownSpecialCase(t *testing.T) {
	t.Parallel()

	doc := `
policyVersion: 1
lang: ko
refusalPhrase: "x"
guardrails: ["g"]
words:
  discourse: ["a"]
  music: ["b"]
  speech: ["c"]
  water: ["d"]
  walking: ["e"]
specialCases:
  - when: moon_landing
    template: "{x}"
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moon_landing")
}

func TestLoadPolicyIncompleteWordLists(t *testing.T) {
	t.Parallel()

	doc := `
policyVersion: 1
lang: ko
refusalPhrase: "x"
guardrails: ["g"]
words:
  discourse: ["a"]
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := LoadPolicy(path)
	assert.Error(t, err)
}
