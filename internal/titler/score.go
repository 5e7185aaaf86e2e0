package titler

import (
	"sort"
	"strings"
	"unicode/utf8"

	"sound-memos-go/internal/types"
)

// Scoring is purely additive and never fails; ratios for labels the
// context does not carry contribute 0. Caps keep any single evidence
// class from drowning the guardrail penalties.
const (
	discourseCap                = 3.0
	discourseScale              = 4.0
	discourseSpeechPrimaryBonus = 0.8

	musicCap          = 2.2
	musicScale        = 3.0
	musicPrimaryBonus = 0.6

	rainCap    = 1.8
	rainScale  = 2.5
	waveCap    = 1.8
	waveScale  = 2.5
	sirenCap   = 1.6
	sirenScale = 2.0

	speechAbsentPenalty  = -5.0
	waterAbsentPenalty   = -4.0
	waveWeakPenalty      = -2.5
	musicWeakPenalty     = -2.0
	walkingAbsentPenalty = -4.0

	weakEvidenceFloor = 0.12

	tidyFormBonus  = 0.5
	cleanCharBonus = 0.3
	tidyFormMaxLen = 22
)

// formJunk triggers loss of the clean-character bonus.
const formJunk = "\"'“”‘’…#"

// Score rates one candidate title against the context under the
// policy's word lists. Deterministic, no external calls.
func Score(title string, c *Context, p *Policy) float64 {
	score := 0.0
	musicRatio := c.Ratio(musicKeys...)

	if containsAnyWord(title, p.Words.Discourse) {
		score += capped(discourseScale*c.SpeechRatio, discourseCap)
		if containsAnyKey(c.PrimaryTag, p.SpeechBiasTags) {
			score += discourseSpeechPrimaryBonus
		}
	}
	if containsAnyWord(title, p.Words.Music) {
		score += capped(musicScale*musicRatio, musicCap)
		if musicLikeTag(c.PrimaryTag) {
			score += musicPrimaryBonus
		}
	}
	if containsAnyWord(title, p.Words.Rain) {
		score += capped(rainScale*c.Ratio(rainKeys...), rainCap)
	}
	if containsAnyWord(title, p.Words.Wave) {
		score += capped(waveScale*c.Ratio(waterKeys...), waveCap)
	}
	if containsAnyWord(title, p.Words.Siren) {
		score += capped(sirenScale*c.Ratio(sirenKeys...), sirenCap)
	}

	// Guardrail penalties: words asserting evidence the context does
	// not support.
	if containsAnyWord(title, p.Words.Speech) && !c.HasVoice {
		score += speechAbsentPenalty
	}
	if containsAnyWord(title, p.Words.Water) {
		if !c.WaterAllowed {
			score += waterAbsentPenalty
		}
		if c.Ratio(waterKeys...) < weakEvidenceFloor {
			score += waveWeakPenalty
		}
	}
	if containsAnyWord(title, p.Words.Music) && musicRatio < weakEvidenceFloor {
		score += musicWeakPenalty
	}
	if containsAnyWord(title, p.Words.Walking) && !c.WalkingCues {
		score += walkingAbsentPenalty
	}

	if !strings.Contains(title, "  ") && utf8.RuneCountInString(title) <= tidyFormMaxLen {
		score += tidyFormBonus
	}
	if !strings.ContainsAny(title, formJunk) {
		score += cleanCharBonus
	}
	return score
}

// Rank scores every candidate and orders them best-first. The sort is
// stable so generation order breaks ties.
func Rank(candidates []string, c *Context, p *Policy) []types.ScoredCandidate {
	scored := make([]types.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		scored = append(scored, types.ScoredCandidate{Title: cand, Score: Score(cand, c, p)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func capped(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
