package walker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rephrase/pkg/checkpoint"
	"rephrase/pkg/config"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/extractor"
	"rephrase/pkg/fetcher"
	"rephrase/pkg/logger"
	"rephrase/pkg/metadata"
	"rephrase/pkg/ratelimit"
	"rephrase/pkg/storage"
)

const host = "https://books.example.com/novel/"

type fakePage struct {
	body  string
	final string
}

// fakeFetcher serves canned pages and records every request.
type fakeFetcher struct {
	pages    map[string]fakePage
	failOnce map[string]bool
	calls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, id string) (*fetcher.Page, error) {
	f.calls = append(f.calls, id)
	if f.failOnce[id] {
		delete(f.failOnce, id)
		return nil, rerrors.Fetch(id, 503, errors.New("service unavailable"))
	}
	p, ok := f.pages[id]
	if !ok {
		return nil, rerrors.Fetch(id, 404, errors.New("not found"))
	}
	final := p.final
	if final == "" {
		final = id
	}
	return &fetcher.Page{Body: []byte(p.body), FinalURL: final, StatusCode: 200}, nil
}

func chapterURL(n int) string {
	return fmt.Sprintf("%schapter-%d.html", host, n)
}

func page(text, next string) string {
	link := ""
	if next != "" {
		link = fmt.Sprintf(`<a id="next_chap" href="%s">Next</a>`, next)
	}
	return fmt.Sprintf(`<html><body><div id="chapter-content">%s</div>%s</body></html>`, text, link)
}

// linearChain builds n pages where page i links to page i+1 by relative href.
func linearChain(n int) *fakeFetcher {
	f := &fakeFetcher{pages: map[string]fakePage{}, failOnce: map[string]bool{}}
	for i := 1; i <= n; i++ {
		next := ""
		if i < n {
			next = fmt.Sprintf("chapter-%d.html", i+1)
		}
		f.pages[chapterURL(i)] = fakePage{body: page(fmt.Sprintf("Text of chapter %d", i), next)}
	}
	return f
}

type harness struct {
	dir    string
	rec    *ratelimit.Recorder
	log    *logger.TestLogger
	items  *storage.Manager
	store  *checkpoint.Store[checkpoint.WalkState]
	pacer  ratelimit.Pacer
	meta   MetadataWriter
	onItem func(Event)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	items, err := storage.NewManager(dir)
	require.NoError(t, err)
	store, err := checkpoint.NewStore[checkpoint.WalkState](dir, nil)
	require.NoError(t, err)
	rec := &ratelimit.Recorder{}
	return &harness{
		dir:   dir,
		rec:   rec,
		log:   logger.NewTestLogger(),
		items: items,
		store: store,
		pacer: ratelimit.NewFixedDelay(5 * time.Second).WithSleeper(rec.Sleep),
	}
}

func (h *harness) walker(t *testing.T, f fetcher.Fetcher, max int) *Walker {
	t.Helper()
	w, err := New(Options{StartURL: chapterURL(1), MaxRequests: max}, Dependencies{
		Fetcher:   f,
		Extractor: extractor.New(config.DefaultConfig().Extract, nil),
		Items:     h.items,
		Store:     h.store,
		Pacer:     h.pacer,
		Metadata:  h.meta,
		Logger:    h.log,
		OnItem:    h.onItem,
	})
	require.NoError(t, err)
	return w
}

// message returns the first captured log entry with text msg.
func (h *harness) message(t *testing.T, msg string) logger.LogMessage {
	t.Helper()
	for _, m := range h.log.GetMessages() {
		if m.Message == msg {
			return m
		}
	}
	t.Fatalf("no log message %q", msg)
	return logger.LogMessage{}
}

func (h *harness) state(t *testing.T) *checkpoint.WalkState {
	t.Helper()
	state, err := h.store.Load()
	require.NoError(t, err)
	return state
}

func TestWalkCompletesChain(t *testing.T) {
	h := newHarness(t)
	f := linearChain(3)

	res, err := h.walker(t, f, 10).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, []string{"chapter-1", "chapter-2", "chapter-3"}, res.Fetched)
	assert.Empty(t, res.Cursor)
	assert.Equal(t, []string{chapterURL(1), chapterURL(2), chapterURL(3)}, f.calls)
	assert.Len(t, h.rec.Pauses, 2, "no pause once the chain has ended")

	text, err := h.items.ReadItem("chapter-2")
	require.NoError(t, err)
	assert.Equal(t, "Text of chapter 2", text)

	state := h.state(t)
	assert.Nil(t, state.Cursor)
	assert.Equal(t, chapterURL(3), state.Last)
	assert.Equal(t, 3, state.Visited.Len())
	assert.Equal(t, 3, state.RequestsTotal)
}

func TestWalkRespectsBudget(t *testing.T) {
	h := newHarness(t)
	f := linearChain(50)

	res, err := h.walker(t, f, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	assert.Len(t, f.calls, 3)
	assert.Equal(t, chapterURL(4), res.Cursor)
	assert.Len(t, h.rec.Pauses, 2, "the final permitted request is not followed by a pause")

	state := h.state(t)
	require.NotNil(t, state.Cursor)
	assert.Equal(t, chapterURL(4), *state.Cursor)
	assert.False(t, state.Visited.Has(chapterURL(4)))

	// A second invocation continues from the cursor instead of restarting.
	f.calls = nil
	res, err = h.walker(t, f, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	assert.Equal(t, []string{chapterURL(4), chapterURL(5)}, f.calls)
	assert.Equal(t, 5, h.state(t).RequestsTotal)
}

func TestWalkStopsOnLoop(t *testing.T) {
	h := newHarness(t)
	a, b := chapterURL(1), chapterURL(2)
	f := &fakeFetcher{pages: map[string]fakePage{
		a: {body: page("A", b)},
		b: {body: page("B", a)},
	}}

	res, err := h.walker(t, f, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoopDetected, res.Outcome)
	assert.Equal(t, []string{a, b}, f.calls, "A is never fetched twice")
	assert.Equal(t, 2, res.Requests)
	assert.Nil(t, h.state(t).Cursor)

	msg := h.message(t, "Loop detected, stopping walk")
	assert.Equal(t, "WARN", msg.Level)
	assert.ErrorIs(t, msg.Error, rerrors.ErrLoopDetected)
	assert.Equal(t, a, msg.Fields["url"])
}

func TestWalkLoopGuardOnResume(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save(&checkpoint.WalkState{Visited: checkpoint.NewSet(chapterURL(1))}))
	f := linearChain(3)

	res, err := h.walker(t, f, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoopDetected, res.Outcome)
	assert.Empty(t, f.calls)
}

func TestWalkFetchFailureRetriedOnResume(t *testing.T) {
	h := newHarness(t)
	f := linearChain(3)
	f.failOnce[chapterURL(2)] = true

	res, err := h.walker(t, f, 10).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrFetch)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, chapterURL(2), res.Cursor)

	state := h.state(t)
	require.NotNil(t, state.Cursor)
	assert.Equal(t, chapterURL(2), *state.Cursor)
	assert.True(t, state.Visited.Has(chapterURL(1)))
	assert.False(t, state.Visited.Has(chapterURL(2)), "a failed fetch is not marked visited")

	msg := h.message(t, "Fetch failed, stopping walk")
	assert.Equal(t, "ERROR", msg.Level)
	assert.ErrorIs(t, msg.Error, rerrors.ErrFetch)

	f.calls = nil
	res, err = h.walker(t, f, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{chapterURL(2), chapterURL(3)}, f.calls)
}

func TestWalkResumesAfterInterruption(t *testing.T) {
	h := newHarness(t)
	f := linearChain(3)

	// Interrupt right after the first checkpoint write, during the pause.
	ctx, cancel := context.WithCancel(context.Background())
	h.pacer = ratelimit.NewFixedDelay(time.Second).WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	res, err := h.walker(t, f, 10).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{chapterURL(1)}, f.calls)

	h.pacer = ratelimit.NewFixedDelay(0)
	f.calls = nil
	res, err = h.walker(t, f, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{chapterURL(2), chapterURL(3)}, f.calls, "the completed item is not fetched again")
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(*metadata.ItemMetadata) error {
	w.calls++
	return errors.New("disk full")
}

func TestWalkMetadataFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	fw := &failingWriter{}
	h.meta = fw

	res, err := h.walker(t, linearChain(2), 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, fw.calls)
	assert.True(t, h.log.HasMessage("Failed to write item metadata"))
}

func TestWalkWritesMetadataWhenEnabled(t *testing.T) {
	h := newHarness(t)
	h.meta = metadata.NewWriter(h.dir, true)

	_, err := h.walker(t, linearChain(2), 10).Run(context.Background())
	require.NoError(t, err)

	meta, err := metadata.Load(h.dir, "chapter-1")
	require.NoError(t, err)
	assert.Equal(t, chapterURL(2), meta.NextURL)
	assert.Equal(t, filepath.Join(h.dir, "chapter-1.txt"), meta.TextFile)
}

func TestWalkFollowsRedirects(t *testing.T) {
	h := newHarness(t)
	final := host + "chapter-1-the-beginning.html"
	f := &fakeFetcher{pages: map[string]fakePage{
		chapterURL(1): {body: page("Start", "chapter-1-the-beginning.html"), final: final},
	}}

	var events []Event
	h.onItem = func(e Event) { events = append(events, e) }

	res, err := h.walker(t, f, 10).Run(context.Background())
	require.NoError(t, err)

	// The next link points at the redirect target, which is already visited.
	assert.Equal(t, OutcomeLoopDetected, res.Outcome)
	assert.Equal(t, []string{"chapter-1-the-beginning"}, res.Fetched)
	require.Len(t, events, 1)
	assert.Equal(t, final, events[0].URL)

	state := h.state(t)
	assert.True(t, state.Visited.Has(chapterURL(1)))
	assert.True(t, state.Visited.Has(final))
}

func TestWalkResolvesAgainstBaseURL(t *testing.T) {
	h := newHarness(t)
	f := &fakeFetcher{pages: map[string]fakePage{
		chapterURL(1):                      {body: page("One", "/other/chapter-2.html")},
		"https://mirror.example.com/other/chapter-2.html": {body: page("Two", "")},
	}}

	w, err := New(Options{StartURL: chapterURL(1), BaseURL: "https://mirror.example.com/novel/", MaxRequests: 5}, Dependencies{
		Fetcher:   f,
		Extractor: extractor.New(config.DefaultConfig().Extract, nil),
		Items:     h.items,
		Store:     h.store,
	})
	require.NoError(t, err)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "https://mirror.example.com/other/chapter-2.html", f.calls[1])
}

func TestWalkCorruptCheckpoint(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.store.Path(), []byte("{not json"), 0644))
	f := linearChain(2)

	_, err := h.walker(t, f, 5).Run(context.Background())
	require.ErrorIs(t, err, rerrors.ErrCheckpointCorrupt)
	assert.Empty(t, f.calls)
}

func TestWalkMissingContentContinues(t *testing.T) {
	h := newHarness(t)
	f := &fakeFetcher{pages: map[string]fakePage{
		chapterURL(1): {body: `<html><body><a id="next_chap" href="chapter-2.html">Next</a></body></html>`},
		chapterURL(2): {body: page("Two", "")},
	}}

	res, err := h.walker(t, f, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)

	text, err := h.items.ReadItem("chapter-1")
	require.NoError(t, err)
	assert.Empty(t, text)

	msg := h.message(t, "No content extracted, storing empty item")
	assert.Equal(t, "WARN", msg.Level)
	assert.ErrorIs(t, msg.Error, rerrors.ErrExtractionMiss)
	assert.Equal(t, chapterURL(1), msg.Fields["url"])
	assert.Empty(t, h.log.GetMessagesByLevel("ERROR"))
}

func TestWalkReportsReplacedItems(t *testing.T) {
	h := newHarness(t)
	_, err := h.items.SaveItem("chapter-1", "stale text")
	require.NoError(t, err)

	_, err = h.walker(t, linearChain(2), 5).Run(context.Background())
	require.NoError(t, err)

	replaced := map[string]interface{}{}
	for _, m := range h.log.GetMessages() {
		if m.Message == "Item stored" {
			replaced[m.Fields["key"].(string)] = m.Fields["replaced"]
		}
	}
	assert.Equal(t, map[string]interface{}{"chapter-1": true, "chapter-2": false}, replaced)

	text, err := h.items.ReadItem("chapter-1")
	require.NoError(t, err)
	assert.Equal(t, "Text of chapter 1", text)
}

func TestWalkSidecarForStateSlug(t *testing.T) {
	h := newHarness(t)
	h.meta = metadata.NewWriter(h.dir, true)
	f := &fakeFetcher{pages: map[string]fakePage{
		chapterURL(1):       {body: page("One", "state.html")},
		host + "state.html": {body: page("Named state", "chapter-3.html")},
	}}

	res, err := h.walker(t, f, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)

	state := h.state(t)
	assert.Equal(t, 2, state.Visited.Len())
	assert.Equal(t, chapterURL(3), state.CursorOr(""))

	meta, err := metadata.Load(h.dir, "state")
	require.NoError(t, err)
	assert.Equal(t, host+"state.html", meta.URL)
	assert.Equal(t, chapterURL(3), meta.NextURL)
}

func TestNewValidatesOptions(t *testing.T) {
	h := newHarness(t)
	deps := Dependencies{Fetcher: linearChain(1), Extractor: extractor.New(config.DefaultConfig().Extract, nil), Items: h.items, Store: h.store}

	_, err := New(Options{MaxRequests: 1}, deps)
	assert.Error(t, err)
	_, err = New(Options{StartURL: chapterURL(1), MaxRequests: 0}, deps)
	assert.Error(t, err)
	_, err = New(Options{StartURL: chapterURL(1), MaxRequests: 1}, Dependencies{})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Crawl.StartURL = chapterURL(1)

	w, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.DirExists(t, cfg.RawPath())
}

func TestNewFromConfigSendsConfiguredHeaders(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		w.Write([]byte(page("Only chapter", "")))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Crawl.StartURL = srv.URL + "/chapter-1.html"
	cfg.Crawl.Delay = 0
	cfg.Crawl.Headers = map[string]string{"Cookie": "age_verified=1"}

	w, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	res, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "age_verified=1", cookie)
}
