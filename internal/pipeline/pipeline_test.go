package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sound-memos-go/internal/logger"
	"sound-memos-go/internal/store"
	"sound-memos-go/internal/titler"
	"sound-memos-go/internal/types"
)

type fakeClassifier struct {
	events []types.ClassificationEvent
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, string) ([]types.ClassificationEvent, error) {
	f.calls++
	return f.events, f.err
}

type fakeTranscriber struct {
	text   string
	err    error
	calls  int
	cancel context.CancelFunc
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _, _ string) (string, error) {
	f.calls++
	if f.cancel != nil {
		f.cancel()
		return "", ctx.Err()
	}
	return f.text, f.err
}

type fakeMatcher struct {
	title, artist string
	ok            bool
	err           error
}

func (f *fakeMatcher) Identify(context.Context, string) (string, string, bool, error) {
	return f.title, f.artist, f.ok, f.err
}

type fixedGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fixedGenerator) Generate(context.Context, string, string, float64) (string, error) {
	f.calls++
	return f.response, f.err
}

func newTestOrchestrator(t *testing.T, cl Classifier, tr Transcriber, m MusicMatcher, st Store, gen titler.TextGenerator) *Orchestrator {
	t.Helper()
	policy, err := titler.LoadPolicy("")
	require.NoError(t, err)
	titles := titler.NewCandidateGenerator(gen, policy, logger.NewComponent("titler-test"))
	return NewOrchestrator(cl, tr, m, st, titles, "ko-KR")
}

func speechEvents() []types.ClassificationEvent {
	return []types.ClassificationEvent{
		{Label: "Speech", Confidence: 0.81},
		{Label: "Speech", Confidence: 0.72},
		{Label: "Wind", Confidence: 0.35},
		{Label: "Hum", Confidence: 0.10}, // below the pre-filter
	}
}

func TestRunHappyPathWithVoice(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: speechEvents()}
	tr := &fakeTranscriber{text: "내일 일정 이야기\n네 알겠습니다"}
	gen := &fixedGenerator{response: "내일 일정 대화"}
	o := newTestOrchestrator(t, cl, tr, &fakeMatcher{}, st, gen)

	rec := &types.Recording{
		ID:        "rec-1",
		AudioURL:  "https://example.com/a.m4a",
		CreatedAt: time.Now(),
		Location:  "경상북도 포항시 남구 효자동",
	}
	res, err := o.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StageSaved, res.Stage)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, "내일 일정 대화 · 포항 남구", rec.Title)
	assert.True(t, rec.TitleFinal)
	assert.NotContains(t, rec.Tags, "Hum")

	saved, err := st.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, saved.TitleFinal)
	assert.Equal(t, rec.Title, saved.Title)
}

func TestRunSkipsTranscriptionWithoutVoice(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: []types.ClassificationEvent{
		{Label: "Waves", Confidence: 0.8},
		{Label: "Waves", Confidence: 0.7},
		{Label: "Wind", Confidence: 0.4},
	}}
	tr := &fakeTranscriber{text: "should not be used"}
	gen := &fixedGenerator{response: "파도 소리"}
	o := newTestOrchestrator(t, cl, tr, &fakeMatcher{}, st, gen)

	rec := &types.Recording{ID: "rec-2", AudioURL: "https://example.com/b.m4a"}
	res, err := o.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Zero(t, tr.calls)
	assert.Empty(t, rec.Transcript)
	assert.Equal(t, StageSaved, res.Stage)
	assert.True(t, rec.TitleFinal)
}

func TestRunNoAudioIsFatal(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	o := newTestOrchestrator(t, &fakeClassifier{}, &fakeTranscriber{}, &fakeMatcher{}, st, &fixedGenerator{})

	rec := &types.Recording{ID: "rec-3"}
	res, err := o.Run(context.Background(), rec)
	require.ErrorIs(t, err, ErrNoAudio)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, string(StagePrepared), res.FailedStage)
}

func TestRunClassifierFailureYieldsRefusal(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{err: errors.New("classifier down")}
	gen := &fixedGenerator{response: "unused"}
	o := newTestOrchestrator(t, cl, &fakeTranscriber{}, &fakeMatcher{}, st, gen)

	rec := &types.Recording{ID: "rec-4", AudioURL: "https://example.com/c.m4a"}
	res, err := o.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.True(t, res.Refused)
	assert.Zero(t, gen.calls, "empty context must trip the ratio floor before generation")
	assert.False(t, rec.TitleFinal)
	assert.Empty(t, rec.Title)
	assert.Equal(t, StageSaved, res.Stage)
}

func TestRunTranscriptionErrorIsNonFatal(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: speechEvents()}
	tr := &fakeTranscriber{err: errors.New("recognizer timeout")}
	gen := &fixedGenerator{response: "사무실의 대화"}
	o := newTestOrchestrator(t, cl, tr, &fakeMatcher{}, st, gen)

	rec := &types.Recording{ID: "rec-5", AudioURL: "https://example.com/d.m4a"}
	res, err := o.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Empty(t, rec.Transcript)
	assert.True(t, rec.TitleFinal)
	assert.Equal(t, StageSaved, res.Stage)
}

func TestRunCancelledDuringTranscription(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: speechEvents()}
	tr := &fakeTranscriber{cancel: cancel}
	o := newTestOrchestrator(t, cl, tr, &fakeMatcher{}, st, &fixedGenerator{response: "unused"})

	rec := &types.Recording{ID: "rec-6", AudioURL: "https://example.com/e.m4a"}
	res, err := o.Run(ctx, rec)
	require.Error(t, err)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, string(StageTranscribed), res.FailedStage)
	assert.False(t, rec.TitleFinal)
}

func TestRunNeverRecomputesFinalizedTitle(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: speechEvents()}
	o := newTestOrchestrator(t, cl, &fakeTranscriber{}, &fakeMatcher{}, st, &fixedGenerator{response: "unused"})

	rec := &types.Recording{ID: "rec-7", AudioURL: "https://example.com/f.m4a", Title: "기존 제목", TitleFinal: true}
	res, err := o.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Zero(t, cl.calls)
	assert.Equal(t, "기존 제목", res.Title)
	assert.Equal(t, "기존 제목", rec.Title)
}

func TestRunAttachesMusicMatch(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: []types.ClassificationEvent{
		{Label: "Acoustic guitar", Confidence: 0.9},
		{Label: "Acoustic guitar", Confidence: 0.8},
		{Label: "Wind", Confidence: 0.3},
	}}
	m := &fakeMatcher{title: "Blackbird", artist: "The Beatles", ok: true}
	gen := &fixedGenerator{response: "기타 연주"}
	o := newTestOrchestrator(t, cl, &fakeTranscriber{}, m, st, gen)

	rec := &types.Recording{ID: "rec-8", AudioURL: "https://example.com/g.m4a"}
	_, err := o.Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "Blackbird", rec.MusicTitle)
	assert.Equal(t, "The Beatles", rec.MusicArtist)
}

func TestRetryUnfinalized(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cl := &fakeClassifier{events: speechEvents()}
	tr := &fakeTranscriber{text: "안녕하세요"}

	// First pass: generator down, title stays unset and un-finalized.
	broken := newTestOrchestrator(t, cl, tr, &fakeMatcher{}, st, &fixedGenerator{err: errors.New("llm down")})
	rec := &types.Recording{ID: "rec-9", AudioURL: "https://example.com/h.m4a"}
	res, err := broken.Run(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, rec.TitleFinal)
	assert.Empty(t, res.Title)

	// Retry pass with a healthy generator finalizes it.
	healthy := newTestOrchestrator(t, cl, tr, &fakeMatcher{}, st, &fixedGenerator{response: "짧은 인사 대화"})
	results, err := healthy.RetryUnfinalized(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-9", results[0].RecordingID)

	saved, err := st.Get(context.Background(), "rec-9")
	require.NoError(t, err)
	assert.True(t, saved.TitleFinal)
	assert.Equal(t, "짧은 인사 대화", saved.Title)
}
