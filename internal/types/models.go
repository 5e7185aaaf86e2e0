package types

import "time"

// Recording is the persisted entity for one audio capture. The pipeline
// only touches the derived fields (tags, transcript, title, music); the
// rest is owned by whoever created the recording.
type Recording struct {
	ID          string        `json:"id"`
	AudioURL    string        `json:"audio_url"`
	Duration    time.Duration `json:"duration,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Title       string        `json:"title,omitempty"`
	TitleFinal  bool          `json:"title_final"`
	Location    string        `json:"location,omitempty"`
	Weather     string        `json:"weather,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Transcript  string        `json:"transcript,omitempty"`
	MusicTitle  string        `json:"music_title,omitempty"`
	MusicArtist string        `json:"music_artist,omitempty"`
}

// ClassificationEvent is one acoustic-event hit from the classifier.
// Events are consumed once by the aggregator and never persisted; only
// the reduced tag summary survives.
type ClassificationEvent struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
}

// ScoredCandidate pairs a candidate title with its reranker score.
type ScoredCandidate struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}
