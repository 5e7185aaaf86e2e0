package aggregator

import (
	"sort"
	"strings"

	"sound-memos-go/internal/types"
)

// voiceConfidenceFloor is the minimum single-event confidence for a
// voice-like label to flip the voice-present signal.
const voiceConfidenceFloor = 0.40

var voiceLabelKeys = []string{"speech", "singing", "vocal"}

// TagStatistics is the reduced form of a recording's classification
// events: occurrence counts per label plus ratios of total. Ratios are
// recomputed on every mutation so they are never stale.
type TagStatistics struct {
	Counts map[string]int     `json:"counts"`
	Ratios map[string]float64 `json:"ratios"`
	total  int
}

func NewTagStatistics() *TagStatistics {
	return &TagStatistics{
		Counts: map[string]int{},
		Ratios: map[string]float64{},
	}
}

// Add records one occurrence of label and refreshes the ratio map.
func (s *TagStatistics) Add(label string) {
	s.Counts[label]++
	s.total++
	for k, c := range s.Counts {
		s.Ratios[k] = float64(c) / float64(s.total)
	}
}

// Empty reports whether no events were counted.
func (s *TagStatistics) Empty() bool { return s.total == 0 }

// Total returns the number of counted events.
func (s *TagStatistics) Total() int { return s.total }

// TopLabels returns labels ordered by descending count, ties broken by
// label ascending.
func (s *TagStatistics) TopLabels() []string {
	labels := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		if s.Counts[labels[i]] != s.Counts[labels[j]] {
			return s.Counts[labels[i]] > s.Counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Result carries the aggregate over one recording's events.
type Result struct {
	Stats    *TagStatistics
	HasVoice bool
}

// Aggregate reduces a finite, pre-filtered (confidence > 0.20) event
// sequence to per-label counts. Counts are occurrence-based, not
// confidence-weighted. HasVoice is true iff any voice-like label has at
// least one event at confidence >= 0.40. An empty sequence is a valid
// terminal state: empty stats, no voice.
func Aggregate(events []types.ClassificationEvent) Result {
	stats := NewTagStatistics()
	hasVoice := false
	for _, ev := range events {
		stats.Add(ev.Label)
		if ev.Confidence >= voiceConfidenceFloor && isVoiceLabel(ev.Label) {
			hasVoice = true
		}
	}
	return Result{Stats: stats, HasVoice: hasVoice}
}

func isVoiceLabel(label string) bool {
	l := strings.ToLower(label)
	for _, key := range voiceLabelKeys {
		if strings.Contains(l, key) {
			return true
		}
	}
	return false
}
