// Package pipeline sequences one recording's processing: prepare →
// classify → (transcribe | skip) → title → save. Each recording runs
// as a single sequential task; the only shared state across runs is
// the read-only title policy and the generator client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sound-memos-go/internal/address"
	"sound-memos-go/internal/aggregator"
	"sound-memos-go/internal/classify"
	"sound-memos-go/internal/logger"
	"sound-memos-go/internal/titler"
	"sound-memos-go/internal/types"
)

// Stage is the orchestrator's state-machine position.
type Stage string

const (
	StageIdle              Stage = "idle"
	StagePrepared          Stage = "prepared"
	StageClassified        Stage = "classified"
	StageTranscribed       Stage = "transcribed"
	StageTranscriptSkipped Stage = "transcript_skipped"
	StageTitled            Stage = "titled"
	StageSaved             Stage = "saved"
	StageFailed            Stage = "failed"
)

// ErrNoAudio is the media-error class: nothing to process, run halts
// before classification.
var ErrNoAudio = errors.New("recording has no audio")

const titlePlaceSeparator = " · "

// Classifier yields the finite event sequence for one recording. The
// pipeline applies the confidence pre-filter itself, so implementations
// need not.
type Classifier interface {
	Classify(ctx context.Context, audioURL string) ([]types.ClassificationEvent, error)
}

// Transcriber resolves once to text or error and honors cancellation.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL, locale string) (string, error)
}

// MusicMatcher optionally names the background track.
type MusicMatcher interface {
	Identify(ctx context.Context, audioURL string) (title, artist string, ok bool, err error)
}

// Store persists the recording after every successful stage so a
// crash between stages loses at most one stage's work.
type Store interface {
	Save(ctx context.Context, rec *types.Recording) error
	ListUnfinalized(ctx context.Context) ([]*types.Recording, error)
}

// Result reports one run.
type Result struct {
	RecordingID string                  `json:"recording_id"`
	Stage       Stage                   `json:"stage"`
	FailedStage string                  `json:"failed_stage,omitempty"`
	Title       string                  `json:"title,omitempty"`
	Refused     bool                    `json:"refused,omitempty"`
	Candidates  []types.ScoredCandidate `json:"candidates,omitempty"`
	Tags        []string                `json:"tags,omitempty"`
	Transcript  string                  `json:"transcript,omitempty"`
	DurationMs  int64                   `json:"duration_ms"`
	Error       string                  `json:"error,omitempty"`
}

type Orchestrator struct {
	classifier  Classifier
	transcriber Transcriber
	matcher     MusicMatcher
	store       Store
	titles      *titler.CandidateGenerator
	locale      string
	log         *logger.Logger
}

func NewOrchestrator(
	classifier Classifier,
	transcriber Transcriber,
	matcher MusicMatcher,
	st Store,
	titles *titler.CandidateGenerator,
	locale string,
) *Orchestrator {
	return &Orchestrator{
		classifier:  classifier,
		transcriber: transcriber,
		matcher:     matcher,
		store:       st,
		titles:      titles,
		locale:      locale,
		log:         logger.NewComponent("pipeline"),
	}
}

// Run executes the full pipeline for one recording. Only the media
// check is allowed to terminate the run with an unrecovered failure;
// every other stage error is caught at its boundary, logged, and the
// run degrades per stage. A finalized title is never recomputed.
func (o *Orchestrator) Run(ctx context.Context, rec *types.Recording) (Result, error) {
	start := time.Now()
	log := o.log.WithField("recording_id", rec.ID)
	res := Result{RecordingID: rec.ID, Stage: StageIdle}

	if rec.TitleFinal {
		res.Stage = StageSaved
		res.Title = rec.Title
		res.DurationMs = time.Since(start).Milliseconds()
		return res, nil
	}

	// Prepare: without an audio handle there is nothing to run.
	if rec.AudioURL == "" {
		res.Stage = StageFailed
		res.FailedStage = string(StagePrepared)
		res.Error = ErrNoAudio.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		return res, fmt.Errorf("prepare %s: %w", rec.ID, ErrNoAudio)
	}
	res.Stage = StagePrepared
	o.persist(ctx, rec, StagePrepared)

	// Classify: a failure leaves empty statistics; titling still runs
	// and the ratio floor turns it into the refusal phrase.
	agg := o.classifyStage(ctx, rec, log)
	rec.Tags = agg.Stats.TopLabels()
	res.Stage = StageClassified
	res.Tags = rec.Tags
	o.persist(ctx, rec, StageClassified)

	// Background music is an optional signal; errors mean "no match".
	o.matchMusic(ctx, rec, log)

	// Transcribe only when the aggregate says voice is present.
	if agg.HasVoice {
		text, err := o.transcriber.Transcribe(ctx, rec.AudioURL, o.locale)
		switch {
		case err != nil && ctx.Err() != nil:
			res.Stage = StageFailed
			res.FailedStage = string(StageTranscribed)
			res.Error = ctx.Err().Error()
			res.DurationMs = time.Since(start).Milliseconds()
			return res, fmt.Errorf("transcribe %s: %w", rec.ID, ctx.Err())
		case err != nil:
			log.WithError(err).Warn("transcription failed, continuing without dialog")
			res.Stage = StageTranscriptSkipped
		default:
			rec.Transcript = text
			res.Stage = StageTranscribed
			res.Transcript = text
		}
	} else {
		res.Stage = StageTranscriptSkipped
	}
	o.persist(ctx, rec, res.Stage)

	// Title: generation failure does not abort the run; the recording
	// stays un-finalized and retry-eligible.
	tc := titler.BuildContext(agg.Stats.Counts, rec)
	outcome, err := o.titles.GenerateTitle(ctx, tc)
	switch {
	case err != nil:
		log.WithError(err).Warn("no title produced")
	case outcome.Refused:
		log.WithField("refusal", outcome.Title).Info("title generation refused")
		res.Title = outcome.Title
		res.Refused = true
	default:
		rec.Title = o.withPlaceSuffix(outcome.Title, rec.Location)
		rec.TitleFinal = true
		res.Title = rec.Title
		res.Candidates = outcome.Candidates
		res.Stage = StageTitled
		o.persist(ctx, rec, StageTitled)
	}

	res.Stage = StageSaved
	o.persist(ctx, rec, StageSaved)
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

// RetryUnfinalized re-runs the whole pipeline for every recording
// whose title never finalized.
func (o *Orchestrator) RetryUnfinalized(ctx context.Context) ([]Result, error) {
	recs, err := o.store.ListUnfinalized(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unfinalized: %w", err)
	}
	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		res, err := o.Run(ctx, rec)
		if err != nil {
			o.log.WithError(err).WithField("recording_id", rec.ID).Warn("retry run failed")
		}
		results = append(results, res)
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

func (o *Orchestrator) classifyStage(ctx context.Context, rec *types.Recording, log *logrus.Entry) aggregator.Result {
	events, err := o.classifier.Classify(ctx, rec.AudioURL)
	if err != nil {
		log.WithError(err).Warn("classification failed, continuing with empty tags")
		return aggregator.Aggregate(nil)
	}
	return aggregator.Aggregate(classify.Filter(events))
}

func (o *Orchestrator) matchMusic(ctx context.Context, rec *types.Recording, log *logrus.Entry) {
	if o.matcher == nil {
		return
	}
	title, artist, ok, err := o.matcher.Identify(ctx, rec.AudioURL)
	if err != nil {
		log.WithError(err).Debug("music match errored, treating as no match")
		return
	}
	if ok {
		rec.MusicTitle = title
		rec.MusicArtist = artist
	}
}

func (o *Orchestrator) withPlaceSuffix(title, location string) string {
	if location == "" {
		return title
	}
	place, ok := address.Canonicalize(location)
	if !ok {
		return title
	}
	return title + titlePlaceSeparator + place
}

func (o *Orchestrator) persist(ctx context.Context, rec *types.Recording, stage Stage) {
	if err := o.store.Save(ctx, rec); err != nil {
		o.log.WithError(err).WithField("stage", string(stage)).Error("persist failed")
	}
}
