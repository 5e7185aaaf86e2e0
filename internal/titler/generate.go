package titler

import (
	"context"
	"errors"
	"strings"

	"sound-memos-go/internal/generation"
	"sound-memos-go/internal/logger"
	"sound-memos-go/internal/types"
)

const (
	generationAttempts  = 4
	samplingTemperature = 0.35

	shortTitleLimit = 15
	longFormLimit   = 64
)

// listSeparators suggest an "artist - track" pattern in raw output.
var listSeparators = []string{",", " - ", "—"}

// ErrNoCandidate means every generation attempt failed to produce a
// usable title. Not a pipeline-fatal condition.
var ErrNoCandidate = errors.New("no title candidate produced")

// TextGenerator is the text-generation port the candidate generator
// drives. Implementations live in internal/generation.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string, temperature float64) (string, error)
}

// Outcome is the result of one title-generation run.
type Outcome struct {
	Title      string
	Refused    bool
	Candidates []types.ScoredCandidate
}

// CandidateGenerator drives the external text generator through a
// fixed number of independent sampling attempts, validates shape,
// canonicalizes length and reranks the survivors.
type CandidateGenerator struct {
	gen    TextGenerator
	policy *Policy
	log    *logger.Logger
}

func NewCandidateGenerator(gen TextGenerator, policy *Policy, log *logger.Logger) *CandidateGenerator {
	return &CandidateGenerator{gen: gen, policy: policy, log: log}
}

// GenerateTitle builds the prompt once, samples candidates, and
// returns the best-scored title. A context below the ratio floor is
// refused upfront with the policy's fixed phrase and zero generator
// invocations. ErrNoCandidate is returned when all attempts fail.
func (g *CandidateGenerator) GenerateTitle(ctx context.Context, c *Context) (Outcome, error) {
	if c.TooWeak() {
		g.log.WithField("max_ratio", c.MaxRatio()).Info("context below ratio floor, refusing generation")
		return Outcome{Title: g.policy.RefusalPhrase, Refused: true}, nil
	}

	system := SystemInstructions(g.policy)
	prompt := BuildPrompt(c)

	var candidates []string
	for attempt := 0; attempt < generationAttempts; attempt++ {
		raw, err := g.gen.Generate(ctx, system, prompt, samplingTemperature)
		if err != nil {
			if generation.IsUnsupportedLanguage(err) {
				// Deliberate no-op: the fallback prompt is built and
				// logged for diagnostics but never re-sent.
				fallback := g.localLanguagePrompt(c)
				g.log.WithError(err).WithField("fallback_prompt_len", len(fallback)).
					Warn("generator rejected language; fallback prompt not sent")
				continue
			}
			g.log.WithError(err).WithField("attempt", attempt).Warn("generation attempt failed")
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.Contains(raw, "\n") {
			continue
		}
		limit := shortTitleLimit
		if g.allowLongForm(c, raw) {
			limit = longFormLimit
		}
		if shrunk := shrinkWith(raw, limit, g.policy.Fillers); shrunk != "" {
			candidates = append(candidates, shrunk)
		}
	}
	if len(candidates) == 0 {
		return Outcome{}, ErrNoCandidate
	}

	scored := Rank(candidates, c, g.policy)
	return Outcome{Title: scored[0].Title, Candidates: scored}, nil
}

// allowLongForm permits the 64-rune limit for music-attribution style
// titles: a music-like primary or secondary tag plus either the known
// background track text or a list-style separator in the raw output.
func (g *CandidateGenerator) allowLongForm(c *Context, raw string) bool {
	if !musicLikeTag(c.PrimaryTag) && !musicLikeTag(c.SecondaryTag) {
		return false
	}
	if c.MusicTitle != "" && strings.Contains(raw, c.MusicTitle) {
		return true
	}
	if c.MusicArtist != "" && strings.Contains(raw, c.MusicArtist) {
		return true
	}
	for _, sep := range listSeparators {
		if strings.Contains(raw, sep) {
			return true
		}
	}
	return false
}

// localLanguagePrompt restates the attempt with an instruction to
// answer only in the policy language.
func (g *CandidateGenerator) localLanguagePrompt(c *Context) string {
	var b strings.Builder
	b.WriteString(ContextDocument(c))
	b.WriteString("반드시 " + g.policy.Lang + " 언어로만 답한다.\n")
	b.WriteString("제목:")
	return b.String()
}
