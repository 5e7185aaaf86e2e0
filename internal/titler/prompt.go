package titler

import (
	"fmt"
	"sort"
	"strings"
)

// Context document keys are stable identifiers shared with the policy's
// few-shot examples. Render order is fixed.
const (
	keyPrimaryTag   = "primary_tag"
	keySecondaryTag = "secondary_tag"
	keyHintTags     = "hint_tags"
	keyTagWeights   = "tag_weights"
	keyTranscript   = "transcript_excerpt"
	keyMusicTitle   = "music_title"
	keyMusicArtist  = "music_artist"
	keyTagRatios    = "tag_ratios"
	keyPrimaryRatio = "primary_ratio"
	keySpeechRatio  = "speech_ratio"
	keyVoice        = "voice_present"
	keyWater        = "water_allowed"
)

var contextKeyOrder = []string{
	keyPrimaryTag, keySecondaryTag, keyHintTags, keyTagWeights,
	keyTranscript, keyMusicTitle, keyMusicArtist, keyTagRatios,
	keyPrimaryRatio, keySpeechRatio, keyVoice, keyWater,
}

// ContextDocument renders the live context as a flat key-value
// document. Every key is present; optional fields render empty.
func ContextDocument(c *Context) string {
	fields := contextFields(c)
	var b strings.Builder
	for _, k := range contextKeyOrder {
		fmt.Fprintf(&b, "%s: %s\n", k, fields[k])
	}
	return b.String()
}

func contextFields(c *Context) map[string]string {
	return map[string]string{
		keyPrimaryTag:   c.PrimaryTag,
		keySecondaryTag: c.SecondaryTag,
		keyHintTags:     strings.Join(c.HintTags, ", "),
		keyTagWeights:   weightDoc(c.Weights),
		keyTranscript:   c.Dialog,
		keyMusicTitle:   c.MusicTitle,
		keyMusicArtist:  c.MusicArtist,
		keyTagRatios:    ratioDoc(c.Ratios),
		keyPrimaryRatio: fmt.Sprintf("%.2f", c.PrimaryRatio),
		keySpeechRatio:  fmt.Sprintf("%.2f", c.SpeechRatio),
		keyVoice:        fmt.Sprintf("%t", c.HasVoice),
		keyWater:        fmt.Sprintf("%t", c.WaterAllowed),
	}
}

// fewShotDocument renders a policy example's input map in the same key
// order as the live document, omitting absent fields.
func fewShotDocument(input map[string]string) string {
	var b strings.Builder
	for _, k := range contextKeyOrder {
		if v, ok := input[k]; ok && v != "" {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	return b.String()
}

// SystemInstructions assembles the generator's standing instructions
// from the policy: guardrails, special-case templates, few-shot pairs.
func SystemInstructions(p *Policy) string {
	var b strings.Builder
	b.WriteString("녹음 맥락 문서를 보고 짧은 한국어 제목 한 줄을 만든다.\n")
	b.WriteString("규칙:\n")
	for _, g := range p.Guardrails {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	if p.PriorityRules.PreferMusicAttribution {
		b.WriteString("- 배경 음악이 식별되면 곡 정보를 제목보다 우선한다.\n")
	}
	if p.PriorityRules.PreferDialogTopic {
		b.WriteString("- 대화가 들리면 대화 주제를 소리 묘사보다 우선한다.\n")
	}
	for _, sc := range p.SpecialCases {
		switch v := sc.(type) {
		case MusicRecognizedCase:
			fmt.Fprintf(&b, "- 배경 음악이 식별된 경우 형식: %s\n",
				strings.NewReplacer("{artist}", "아티스트", "{title}", "곡명").Replace(v.Template))
		case RainDominantCase:
			fmt.Fprintf(&b, "- 빗소리가 대부분인 경우 예시: %s\n", v.Template)
		}
	}
	if len(p.FewShot) > 0 {
		b.WriteString("\n예시:\n")
		for _, ex := range p.FewShot {
			b.WriteString(fewShotDocument(ex.Input))
			fmt.Fprintf(&b, "제목: %s\n\n", ex.Output)
		}
	}
	return b.String()
}

// BuildPrompt renders the live context document plus the hint line for
// one generation attempt.
func BuildPrompt(c *Context) string {
	var b strings.Builder
	b.WriteString(ContextDocument(c))
	b.WriteString(hintLine(c))
	b.WriteString("제목:")
	return b.String()
}

// hintLine states which evidence-gated vocabularies this context
// permits, mirroring the scorer's hard penalties.
func hintLine(c *Context) string {
	var allowed, banned []string
	if c.HasVoice {
		allowed = append(allowed, "대화")
	} else {
		banned = append(banned, "대화")
	}
	if c.WalkingCues {
		allowed = append(allowed, "산책")
	} else {
		banned = append(banned, "산책")
	}
	if c.WaterAllowed {
		allowed = append(allowed, "물소리")
	} else {
		banned = append(banned, "물소리")
	}
	var b strings.Builder
	if len(allowed) > 0 {
		fmt.Fprintf(&b, "힌트: %s 관련 표현 사용 가능.\n", strings.Join(allowed, ", "))
	}
	if len(banned) > 0 {
		fmt.Fprintf(&b, "힌트: %s 관련 표현 금지.\n", strings.Join(banned, ", "))
	}
	return b.String()
}

func weightDoc(weights map[string]int) string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, weights[k]))
	}
	return strings.Join(parts, ", ")
}

func ratioDoc(ratios map[string]float64) string {
	keys := make([]string, 0, len(ratios))
	for k := range ratios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, ratios[k]))
	}
	return strings.Join(parts, ", ")
}
