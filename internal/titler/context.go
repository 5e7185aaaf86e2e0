package titler

import (
	"sort"
	"strings"

	"sound-memos-go/internal/types"
)

// Derived-signal thresholds. The ratio floor guards the whole
// generation attempt: context weaker than it cannot support any
// confident claim, so the generator is never invoked.
const (
	ratioFloor        = 0.20
	voiceRatioFloor   = 0.25
	waterRatioFloor   = 0.15
	walkingRatioFloor = 0.15

	dialogMaxLines = 3
	hintTagMax     = 3
)

// Label-substring groups used to derive ratios from classifier labels.
// These match the classifier's English label vocabulary, unlike the
// localized title word lists carried by the policy.
var (
	speechKeys  = []string{"speech", "vocal", "singing"}
	waterKeys   = []string{"waves", "wave", "water", "ocean", "sea"}
	walkingKeys = []string{"footsteps", "walking", "walk", "jog", "stroll"}
	rainKeys    = []string{"rain"}
	sirenKeys   = []string{"siren", "alarm"}
	musicKeys   = []string{"music", "singing", "instrument", "song", "guitar", "piano", "keyboard", "drum"}
)

// Context is the immutable, per-attempt bundle of derived signals the
// generator prompt and the scorer both read. Built once, discarded
// after the attempt.
type Context struct {
	PrimaryTag   string
	SecondaryTag string
	HintTags     []string
	Weights      map[string]int
	Ratios       map[string]float64
	PrimaryRatio float64
	SpeechRatio  float64
	HasVoice     bool
	WaterAllowed bool
	WalkingCues  bool
	Dialog       string
	MusicTitle   string
	MusicArtist  string
}

// BuildContext derives the title context from per-label integer
// weights (typically occurrence counts) and the recording's metadata.
func BuildContext(weights map[string]int, rec *types.Recording) *Context {
	c := &Context{
		Weights: weights,
		Ratios:  map[string]float64{},
	}

	total := 0
	for _, w := range weights {
		total += w
	}
	if total < 1 {
		total = 1
	}
	for label, w := range weights {
		c.Ratios[label] = float64(w) / float64(total)
	}

	ordered := orderedLabels(weights)
	if len(ordered) > 0 {
		c.PrimaryTag = ordered[0]
		c.PrimaryRatio = c.Ratios[ordered[0]]
	}
	if len(ordered) > 1 {
		c.SecondaryTag = ordered[1]
	}
	for i := 2; i < len(ordered) && len(c.HintTags) < hintTagMax; i++ {
		c.HintTags = append(c.HintTags, ordered[i])
	}

	c.SpeechRatio = c.Ratio(speechKeys...)
	c.HasVoice = c.SpeechRatio >= voiceRatioFloor
	c.WaterAllowed = c.Ratio(waterKeys...) >= waterRatioFloor
	c.WalkingCues = c.Ratio(walkingKeys...) >= walkingRatioFloor
	c.Dialog = dialogExcerpt(rec.Transcript)
	c.MusicTitle = rec.MusicTitle
	c.MusicArtist = rec.MusicArtist
	return c
}

// Ratio returns the maximum ratio among labels whose lowercase form
// contains any of the given substrings, or 0 when no label matches.
func (c *Context) Ratio(keys ...string) float64 {
	best := 0.0
	for label, r := range c.Ratios {
		l := strings.ToLower(label)
		for _, key := range keys {
			if strings.Contains(l, strings.ToLower(key)) && r > best {
				best = r
			}
		}
	}
	return best
}

// MaxRatio is the largest ratio across all labels.
func (c *Context) MaxRatio() float64 {
	best := 0.0
	for _, r := range c.Ratios {
		if r > best {
			best = r
		}
	}
	return best
}

// TooWeak reports whether the context falls below the generation
// ratio floor.
func (c *Context) TooWeak() bool { return c.MaxRatio() < ratioFloor }

func orderedLabels(weights map[string]int) []string {
	labels := make([]string, 0, len(weights))
	for l := range weights {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if weights[labels[i]] != weights[labels[j]] {
			return weights[labels[i]] > weights[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// dialogExcerpt keeps the first lines of the transcript, space-joined.
func dialogExcerpt(transcript string) string {
	if strings.TrimSpace(transcript) == "" {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == dialogMaxLines {
			break
		}
	}
	return strings.Join(kept, " ")
}

func musicLikeTag(tag string) bool {
	return containsAnyKey(tag, musicKeys)
}

func containsAnyKey(s string, keys []string) bool {
	l := strings.ToLower(s)
	for _, k := range keys {
		if strings.Contains(l, k) {
			return true
		}
	}
	return false
}
