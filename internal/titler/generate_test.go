package titler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sound-memos-go/internal/generation"
	"sound-memos-go/internal/logger"
	"sound-memos-go/internal/types"
)

// scriptedGenerator returns its scripted responses in order; a nil
// entry yields the paired error instead.
type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedGenerator) Generate(_ context.Context, _, _ string, _ float64) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("script exhausted")
}

func strongContext() *Context {
	return BuildContext(map[string]int{"Rain": 6, "Wind": 4}, &types.Recording{})
}

func newGen(t *testing.T, sg *scriptedGenerator) *CandidateGenerator {
	t.Helper()
	p, err := LoadPolicy("")
	require.NoError(t, err)
	return NewCandidateGenerator(sg, p, logger.NewComponent("titler-test"))
}

func TestRefusalSkipsGenerator(t *testing.T) {
	t.Parallel()

	sg := &scriptedGenerator{}
	g := newGen(t, sg)
	weak := BuildContext(map[string]int{"a": 1, "b": 1, "c": 1, "d": 1, "e": 1, "f": 1}, &types.Recording{})

	out, err := g.GenerateTitle(context.Background(), weak)
	require.NoError(t, err)
	assert.True(t, out.Refused)
	assert.Equal(t, g.policy.RefusalPhrase, out.Title)
	assert.Zero(t, sg.calls, "refusal must not invoke the generator")
}

func TestFourAttempts(t *testing.T) {
	t.Parallel()

	sg := &scriptedGenerator{responses: []string{"빗소리", "창밖의 빗소리", "빗소리 녹음", "비 내리는 오후"}}
	g := newGen(t, sg)

	out, err := g.GenerateTitle(context.Background(), strongContext())
	require.NoError(t, err)
	assert.Equal(t, 4, sg.calls)
	assert.Len(t, out.Candidates, 4)
	assert.False(t, out.Refused)
}

func TestDiscardsMultilineAndEmpty(t *testing.T) {
	t.Parallel()

	sg := &scriptedGenerator{responses: []string{"", "첫 줄\n둘째 줄", "빗소리", "   "}}
	g := newGen(t, sg)

	out, err := g.GenerateTitle(context.Background(), strongContext())
	require.NoError(t, err)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "빗소리", out.Title)
}

func TestShortLimitApplied(t *testing.T) {
	t.Parallel()

	sg := &scriptedGenerator{responses: []string{
		"아주 길게 이어지는 빗소리와 바람 소리가 같이 들리는 녹음",
		"빗소리", "빗소리", "빗소리",
	}}
	g := newGen(t, sg)

	out, err := g.GenerateTitle(context.Background(), strongContext())
	require.NoError(t, err)
	for _, cand := range out.Candidates {
		assert.LessOrEqual(t, len([]rune(cand.Title)), shortTitleLimit)
	}
}

func TestMusicLongFormKept(t *testing.T) {
	t.Parallel()

	raw := "The Beatles - Blackbird 어쿠스틱 기타 연주 실황 녹음"
	sg := &scriptedGenerator{responses: []string{raw, raw, raw, raw}}
	g := newGen(t, sg)

	rec := &types.Recording{MusicTitle: "Blackbird", MusicArtist: "The Beatles"}
	c := BuildContext(map[string]int{"Acoustic guitar": 7, "Speech": 3}, rec)

	out, err := g.GenerateTitle(context.Background(), c)
	require.NoError(t, err)
	// long-form limit keeps the attribution beyond 15 runes
	assert.Greater(t, len([]rune(out.Title)), shortTitleLimit)
	assert.Contains(t, out.Title, "Blackbird")
}

func TestAllAttemptsFail(t *testing.T) {
	t.Parallel()

	boom := errors.New("generator unavailable")
	sg := &scriptedGenerator{errs: []error{boom, boom, boom, boom}}
	g := newGen(t, sg)

	_, err := g.GenerateTitle(context.Background(), strongContext())
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Equal(t, 4, sg.calls)
}

func TestUnsupportedLanguageIsNotRetried(t *testing.T) {
	t.Parallel()

	langErr := generation.ErrUnsupportedLanguage
	sg := &scriptedGenerator{
		errs:      []error{langErr, nil, nil, nil},
		responses: []string{"", "빗소리", "빗소리", "빗소리"},
	}
	g := newGen(t, sg)

	out, err := g.GenerateTitle(context.Background(), strongContext())
	require.NoError(t, err)
	// the rejected attempt is consumed, not replayed with the fallback
	assert.Equal(t, 4, sg.calls)
	assert.Len(t, out.Candidates, 3)
	assert.Equal(t, "빗소리", out.Title)
}

func TestBestCandidateWins(t *testing.T) {
	t.Parallel()

	// context: waves dominant, no voice
	c := BuildContext(map[string]int{"Waves": 4, "Wind": 3, "Seagull": 3}, &types.Recording{})
	sg := &scriptedGenerator{responses: []string{
		"회의실 잡담", // speech words without voice: heavy penalty
		"파도 소리가 들리는 바다",
		"회의 녹음",
		"바닷가 파도",
	}}
	g := newGen(t, sg)

	out, err := g.GenerateTitle(context.Background(), c)
	require.NoError(t, err)
	assert.NotContains(t, out.Title, "회의")
}
