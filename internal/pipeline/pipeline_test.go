package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/shorts"
)

type fakeStore struct {
	existing  map[string]bool
	upserts   []shorts.Candidate
	backfills map[string]int
	pending   []shorts.Candidate
	pendingIn []shorts.Partition
	marked    []string

	upsertErr  error
	pendingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing:  map[string]bool{},
		backfills: map[string]int{},
	}
}

func (s *fakeStore) Upsert(_ context.Context, cand shorts.Candidate) (bool, error) {
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	s.upserts = append(s.upserts, cand)
	if s.existing[cand.URL] {
		return false, nil
	}
	s.existing[cand.URL] = true
	return true, nil
}

func (s *fakeStore) BackfillDuration(_ context.Context, url string, seconds int) error {
	s.backfills[url] = seconds
	return nil
}

func (s *fakeStore) SelectPending(_ context.Context, partitions []shorts.Partition) ([]shorts.Candidate, error) {
	s.pendingIn = partitions
	if s.pendingErr != nil {
		return nil, s.pendingErr
	}
	return s.pending, nil
}

func (s *fakeStore) MarkPublished(_ context.Context, url string, _ time.Time) error {
	s.marked = append(s.marked, url)
	return nil
}

func (s *fakeStore) Close() {}

type fakeExtractor struct {
	rows map[string][]shorts.RawCandidate
	errs map[string]error
}

func (e *fakeExtractor) Extract(_ context.Context, target shorts.SearchTarget) ([]shorts.RawCandidate, error) {
	if err := e.errs[target.URL]; err != nil {
		return nil, err
	}
	return e.rows[target.URL], nil
}

type fakeAcquirer struct {
	calls []string
	errs  map[string]error
}

func (a *fakeAcquirer) Acquire(_ context.Context, cand shorts.Candidate) (shorts.Acquisition, error) {
	a.calls = append(a.calls, cand.URL)
	if err := a.errs[cand.URL]; err != nil {
		return shorts.Acquisition{}, err
	}
	return shorts.Acquisition{MediaPath: "/tmp/v.mp4", ThumbnailPath: "/tmp/v.jpg"}, nil
}

type fakePublisher struct {
	calls  []string
	errs   map[string]error
	onCall func()
}

func (p *fakePublisher) Publish(_ context.Context, cand shorts.Candidate, _ shorts.Acquisition) error {
	p.calls = append(p.calls, cand.URL)
	if p.onCall != nil {
		p.onCall()
	}
	return p.errs[cand.URL]
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func pendingCandidate(url string, lang, cat int) shorts.Candidate {
	return shorts.Candidate{
		URL:       url,
		Partition: shorts.Partition{Language: lang, Category: cat},
		Duration:  45,
	}
}

func newPipeline(cfg Config, targets []shorts.SearchTarget, st *fakeStore, ex *fakeExtractor, aq *fakeAcquirer, pb *fakePublisher) *Pipeline {
	if ex == nil {
		ex = &fakeExtractor{}
	}
	if aq == nil {
		aq = &fakeAcquirer{}
	}
	if pb == nil {
		pb = &fakePublisher{}
	}
	clock := fixedClock{at: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)}
	return New(cfg, targets, st, ex, aq, pb, clock, zap.NewNop())
}

func TestDiscoverCatalogsAndDeduplicates(t *testing.T) {
	target := shorts.SearchTarget{
		URL:       "https://www.youtube.com/results?search_query=meme+shorts",
		Partition: shorts.Partition{Language: 1, Category: 3},
	}
	store := newFakeStore()
	store.existing["https://www.youtube.com/shorts/known123"] = true

	extractor := &fakeExtractor{rows: map[string][]shorts.RawCandidate{
		target.URL: {
			{Title: "fresh", URL: "https://www.youtube.com/shorts/fresh001", DurationText: "0:45"},
			{Title: "known", URL: "https://www.youtube.com/shorts/known123", DurationText: "1:05"},
			{Title: "no badge", URL: "https://www.youtube.com/shorts/nobadge1"},
			{Title: "garbage link", URL: "/results?search_query=nested"},
		},
	}}

	p := newPipeline(Config{}, []shorts.SearchTarget{target}, store, extractor, nil, nil)
	got := p.Discover(context.Background())

	// Only genuinely new, recognizable video URLs count as discovered.
	assert.Equal(t, 2, got)
	require.Len(t, store.upserts, 3)
	assert.Equal(t, 45, store.upserts[0].Duration)
	assert.Equal(t, shorts.Partition{Language: 1, Category: 3}, store.upserts[0].Partition)
	assert.Equal(t, 0, store.upserts[2].Duration)

	// The already-known row with a parsed badge gets its duration backfilled.
	assert.Equal(t, map[string]int{"https://www.youtube.com/shorts/known123": 65}, store.backfills)
}

func TestDiscoverResolvesRelativeHrefsViaCanonicalURL(t *testing.T) {
	target := shorts.SearchTarget{
		URL:       "https://www.youtube.com/results?search_query=x",
		Partition: shorts.Partition{Language: 2, Category: 1},
	}
	store := newFakeStore()
	extractor := &fakeExtractor{rows: map[string][]shorts.RawCandidate{
		target.URL: {
			{Title: "watch link", URL: "https://www.youtube.com/watch?v=abc123&pp=ygUF", DurationText: "0:30"},
		},
	}}

	p := newPipeline(Config{}, []shorts.SearchTarget{target}, store, extractor, nil, nil)
	p.Discover(context.Background())

	require.Len(t, store.upserts, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", store.upserts[0].URL)
}

func TestDiscoverSkipsFailingTarget(t *testing.T) {
	good := shorts.SearchTarget{URL: "https://www.youtube.com/results?search_query=a", Partition: shorts.Partition{Language: 1, Category: 1}}
	bad := shorts.SearchTarget{URL: "https://www.youtube.com/results?search_query=b", Partition: shorts.Partition{Language: 1, Category: 2}}

	store := newFakeStore()
	extractor := &fakeExtractor{
		rows: map[string][]shorts.RawCandidate{
			good.URL: {{Title: "ok", URL: "https://www.youtube.com/shorts/okvid001", DurationText: "0:20"}},
		},
		errs: map[string]error{bad.URL: errors.New("navigation timeout")},
	}

	p := newPipeline(Config{}, []shorts.SearchTarget{bad, good}, store, extractor, nil, nil)
	got := p.Discover(context.Background())

	assert.Equal(t, 1, got)
	require.Len(t, store.upserts, 1)
}

func TestPublishPendingIsolatesFailures(t *testing.T) {
	targets := []shorts.SearchTarget{
		{URL: "https://www.youtube.com/results?search_query=a", Partition: shorts.Partition{Language: 1, Category: 1}},
		{URL: "https://www.youtube.com/results?search_query=b", Partition: shorts.Partition{Language: 1, Category: 2}},
		{URL: "https://www.youtube.com/results?search_query=c", Partition: shorts.Partition{Language: 2, Category: 1}},
	}
	store := newFakeStore()
	store.pending = []shorts.Candidate{
		pendingCandidate("https://www.youtube.com/shorts/dlfails1", 1, 1),
		pendingCandidate("https://www.youtube.com/shorts/pubfail1", 1, 2),
		pendingCandidate("https://www.youtube.com/shorts/good0001", 2, 1),
	}
	acquirer := &fakeAcquirer{errs: map[string]error{
		"https://www.youtube.com/shorts/dlfails1": errors.New("download failed after 3 attempts"),
	}}
	publisher := &fakePublisher{errs: map[string]error{
		"https://www.youtube.com/shorts/pubfail1": errors.New("upload rejected: status 429"),
	}}

	p := newPipeline(Config{}, targets, store, nil, acquirer, publisher)
	selected, published, failed, err := p.PublishPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, selected)
	assert.Equal(t, 1, published)
	assert.Equal(t, 2, failed)
	// The failed acquisition never reaches the publisher.
	assert.NotContains(t, publisher.calls, "https://www.youtube.com/shorts/dlfails1")
	assert.Contains(t, publisher.calls, "https://www.youtube.com/shorts/good0001")
}

func TestPublishPendingDeduplicatesPartitions(t *testing.T) {
	targets := []shorts.SearchTarget{
		{URL: "https://www.youtube.com/results?search_query=a", Partition: shorts.Partition{Language: 1, Category: 1}},
		{URL: "https://www.youtube.com/results?search_query=b", Partition: shorts.Partition{Language: 1, Category: 1}},
		{URL: "https://www.youtube.com/results?search_query=c", Partition: shorts.Partition{Language: 1, Category: 2}},
	}
	store := newFakeStore()

	p := newPipeline(Config{}, targets, store, nil, nil, nil)
	_, _, _, err := p.PublishPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []shorts.Partition{
		{Language: 1, Category: 1},
		{Language: 1, Category: 2},
	}, store.pendingIn)
}

func TestPublishPendingSelectionErrorIsFatal(t *testing.T) {
	targets := []shorts.SearchTarget{
		{URL: "https://www.youtube.com/results?search_query=a", Partition: shorts.Partition{Language: 1, Category: 1}},
	}
	store := newFakeStore()
	store.pendingErr = errors.New("connection refused")

	p := newPipeline(Config{}, targets, store, nil, nil, nil)
	_, _, _, err := p.PublishPending(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "select pending")
}

func TestPublishPendingStopsWhenContextEnds(t *testing.T) {
	targets := []shorts.SearchTarget{
		{URL: "https://www.youtube.com/results?search_query=a", Partition: shorts.Partition{Language: 1, Category: 1}},
		{URL: "https://www.youtube.com/results?search_query=b", Partition: shorts.Partition{Language: 1, Category: 2}},
	}
	store := newFakeStore()
	store.pending = []shorts.Candidate{
		pendingCandidate("https://www.youtube.com/shorts/first001", 1, 1),
		pendingCandidate("https://www.youtube.com/shorts/second01", 1, 2),
	}
	ctx, cancel := context.WithCancel(context.Background())
	publisher := &fakePublisher{onCall: cancel}
	acquirer := &fakeAcquirer{}

	p := newPipeline(Config{}, targets, store, nil, acquirer, publisher)
	selected, published, failed, err := p.PublishPending(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, selected)
	assert.Equal(t, 1, published)
	assert.Equal(t, 0, failed)
	require.Len(t, acquirer.calls, 1)
}

func TestRunProducesSummary(t *testing.T) {
	target := shorts.SearchTarget{
		URL:       "https://www.youtube.com/results?search_query=a",
		Partition: shorts.Partition{Language: 1, Category: 1},
	}
	store := newFakeStore()
	store.pending = []shorts.Candidate{
		pendingCandidate("https://www.youtube.com/shorts/queued01", 1, 1),
	}
	extractor := &fakeExtractor{rows: map[string][]shorts.RawCandidate{
		target.URL: {{Title: "new", URL: "https://www.youtube.com/shorts/newone01", DurationText: "0:30"}},
	}}

	p := newPipeline(Config{RunTimeout: time.Minute}, []shorts.SearchTarget{target}, store, extractor, nil, nil)
	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.Selected)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, 0, summary.Failed)
	assert.False(t, summary.Started.IsZero())
	assert.False(t, summary.Finished.IsZero())
}

func TestRunCarriesSelectionErrorWithSummary(t *testing.T) {
	target := shorts.SearchTarget{
		URL:       "https://www.youtube.com/results?search_query=a",
		Partition: shorts.Partition{Language: 1, Category: 1},
	}
	store := newFakeStore()
	store.pendingErr = errors.New("connection refused")

	p := newPipeline(Config{}, []shorts.SearchTarget{target}, store, &fakeExtractor{}, nil, nil)
	summary, err := p.Run(context.Background())

	require.Error(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 0, summary.Published)
}
