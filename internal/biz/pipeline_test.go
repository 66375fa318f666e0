package biz

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	repo       *memRepo
	page       *fakePage
	loader     *fakeLoader
	classifier *fakeClassifier
	notifier   *fakeNotifier
	logs       *logRecorder
}

func newPipelineFixture(cards ...Card) *pipelineFixture {
	return &pipelineFixture{
		repo:       newMemRepo(),
		page:       newFakePage(cards...),
		loader:     newFakeLoader(),
		classifier: newFakeClassifier(),
		notifier:   &fakeNotifier{},
		logs:       &logRecorder{},
	}
}

func (f *pipelineFixture) pipeline() *Pipeline {
	cfg := DefaultFilterConfig()
	cfg.Workers = 4
	return NewPipeline(context.Background(), PipelineDeps{
		Repo:      f.repo,
		Page:      f.page,
		Loader:    f.loader,
		Resolver:  NewResolver(fakeHasher{}, f.logs),
		Estimator: NewGenderEstimator(fakeNames{"john": 0.98, "maria": 0.02}, f.classifier, f.logs),
		Notifier:  f.notifier,
		Config:    cfg,
	}, f.logs)
}

func card(key string, id ProfileID, url, name string) Card {
	return Card{Key: key, ID: id, PhotoURL: url, Name: name}
}

func pink(alpha string) Presentation {
	return Presentation{Background: "rgba(255, 119, 149, " + alpha + ")"}
}

func TestPipeline_NameScenario(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "u1", "John"), card("c2", "2", "u2", "María"))
	f.loader.add("u1", "h1")
	f.loader.add("u2", "h2")

	waitDone(t, f.pipeline().Refresh())

	pr, ok := f.page.presentation("c1")
	require.True(t, ok)
	assert.True(t, pr.Hidden)
	pr, ok = f.page.presentation("c2")
	require.True(t, ok)
	assert.Equal(t, pink("0.980"), pr)

	assert.JSONEq(t, `{"1":"h1","2":"h2"}`, f.repo.raw(NamespaceIDToHash))
	assert.JSONEq(t, `{"h1":"1","h2":"2"}`, f.repo.raw(NamespaceHashToID))
	assert.JSONEq(t, `{}`, f.repo.raw(NamespacePhotoGender))
	for _, ns := range []Namespace{NamespaceIDToHash, NamespaceHashToID, NamespacePhotoGender} {
		assert.Equal(t, 1, f.repo.writeCount(ns), ns)
	}
	assert.Empty(t, f.notifier.all())
}

func TestPipeline_BlocklistAlwaysHides(t *testing.T) {
	f := newPipelineFixture(card("c42", "42", "u42", "María"))
	f.loader.add("u42", "h42")
	f.classifier.scores["u42"] = Known(0.01)
	f.repo.put(NamespaceBlocklist, `["42"]`)

	waitDone(t, f.pipeline().Refresh())

	pr, _ := f.page.presentation("c42")
	assert.True(t, pr.Hidden)
	assert.Zero(t, f.classifier.calls.Load(), "excluded profiles are not classified")
	assert.JSONEq(t, `{"42":"h42"}`, f.repo.raw(NamespaceIDToHash), "identity is still captured")
}

func TestPipeline_ChattedHides(t *testing.T) {
	f := newPipelineFixture(card("c9", "9", "u9", "María"))
	f.loader.add("u9", "h9")
	f.repo.put(NamespaceChatted, `["9"]`)

	waitDone(t, f.pipeline().Refresh())

	pr, _ := f.page.presentation("c9")
	assert.True(t, pr.Hidden)
}

func TestPipeline_ClassifierFailureFallsBackToName(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "u1", "María"), card("c2", "2", "u2", "Zxqv"))
	f.loader.add("u1", "h1")
	f.loader.add("u2", "h2")
	f.classifier.fail["u1"] = true
	f.classifier.scores["u2"] = Known(0.95)

	waitDone(t, f.pipeline().Refresh())

	pr, _ := f.page.presentation("c1")
	assert.Equal(t, pink("0.980"), pr)
	pr, _ = f.page.presentation("c2")
	assert.True(t, pr.Hidden)

	var stored map[string]float64
	require.NoError(t, json.Unmarshal([]byte(f.repo.raw(NamespacePhotoGender)), &stored))
	assert.Equal(t, map[string]float64{"2": 0.95}, stored)
	assert.Empty(t, f.notifier.all(), "card errors do not reach the pass boundary")
}

func TestPipeline_ProcessesEachIDOncePerSession(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "u1", "Zxqv"), card("c1b", "1", "u1", "Zxqv"))
	f.loader.add("u1", "h1")
	f.classifier.scores["u1"] = Known(0.5)
	p := f.pipeline()

	waitDone(t, p.Refresh())
	waitDone(t, p.Refresh())

	assert.Equal(t, 1, p.Processed())
	assert.Equal(t, 1, f.loader.count("u1"))
	assert.EqualValues(t, 1, f.classifier.calls.Load())
}

func TestPipeline_DurableScoresSurviveSessions(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "u1", "Zxqv"))
	f.loader.add("u1", "h1")
	f.classifier.scores["u1"] = Known(0.3)

	waitDone(t, f.pipeline().Refresh())
	f.classifier.fail["u1"] = true
	waitDone(t, f.pipeline().Refresh())

	assert.EqualValues(t, 1, f.classifier.calls.Load())
	assert.Equal(t, 1, f.loader.count("u1"), "hashed and scored profiles need no photo")
	pr, _ := f.page.presentation("c1")
	assert.Equal(t, Presentation{Background: "rgba(167, 120, 255, 0.700)"}, pr)
}

func TestPipeline_LoadFailureRetriedNextPass(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "missing", "María"))
	p := f.pipeline()

	waitDone(t, p.Refresh())
	pr, _ := f.page.presentation("c1")
	assert.Equal(t, pink("0.980"), pr)
	assert.Zero(t, p.Processed())

	waitDone(t, p.Refresh())
	assert.Equal(t, 2, f.loader.count("missing"))
}

func TestPipeline_InvalidCardSkipped(t *testing.T) {
	f := newPipelineFixture(card("bad", "", "u1", "John"), card("c2", "2", "u2", "John"))
	f.loader.add("u2", "h2")
	p := f.pipeline()

	waitDone(t, p.Refresh())

	_, ok := f.page.presentation("bad")
	assert.False(t, ok)
	pr, _ := f.page.presentation("c2")
	assert.True(t, pr.Hidden)
	assert.Equal(t, 1, p.Processed())
}

func TestPipeline_StoreFailureNotifies(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "u1", "John"))
	f.repo.failGet = errBoom

	waitDone(t, f.pipeline().Refresh())

	items := f.notifier.all()
	require.Len(t, items, 1)
	assert.Equal(t, "Filter profiles error", items[0].Title)
}

func TestPipeline_Highlighted(t *testing.T) {
	f := newPipelineFixture()
	f.page.highlighted = []Card{
		{PhotoURL: "u1", Name: "Maria"},
		{PhotoURL: "u3", Name: "Zxqv"},
	}
	f.loader.add("u1", "h1")
	f.loader.add("u3", "h3")
	f.classifier.scores["u3"] = Known(0.2)
	f.repo.put(NamespaceHashToID, `{"h1":"1"}`)
	f.repo.put(NamespaceIDToHash, `{"1":"h1"}`)
	f.repo.put(NamespaceBlocklist, `["1"]`)

	waitDone(t, f.pipeline().RefreshHighlighted())

	pr, ok := f.page.presentation(HighlightedKey("u1"))
	require.True(t, ok)
	assert.True(t, pr.Hidden)
	pr, ok = f.page.presentation(HighlightedKey("u3"))
	require.True(t, ok)
	assert.Equal(t, Presentation{Background: "rgba(167, 120, 255, 0.800)"}, pr)

	assert.JSONEq(t, `{}`, f.repo.raw(NamespacePhotoGender), "unknown ids are scored uncached")
	assert.Zero(t, f.repo.writeCount(NamespaceIDToHash))
	assert.Zero(t, f.repo.writeCount(NamespaceHashToID))
	assert.Equal(t, 1, f.repo.writeCount(NamespacePhotoGender))
}

func TestPipeline_HighlightedCachesKnownID(t *testing.T) {
	f := newPipelineFixture()
	f.page.highlighted = []Card{{Key: "hl", PhotoURL: "u1", Name: "Zxqv"}}
	f.loader.add("u1", "h1")
	f.classifier.scores["u1"] = Known(0.4)
	f.repo.put(NamespaceHashToID, `{"h1":"1"}`)

	waitDone(t, f.pipeline().RefreshHighlighted())

	assert.JSONEq(t, `{"1":0.4}`, f.repo.raw(NamespacePhotoGender))
	_, ok := f.page.presentation("hl")
	assert.True(t, ok)
}

func TestPipeline_ToggleReveal(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(card("c1", "1", "u1", "John"), card("c2", "2", "u2", "María"))
	f.loader.add("u1", "h1")
	f.loader.add("u2", "h2")
	p := f.pipeline()
	waitDone(t, p.Refresh())

	n, revealed, err := p.ToggleReveal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, revealed)
	pr, _ := f.page.presentation("c1")
	assert.Equal(t, Presentation{Background: RevealBackground}, pr)

	n, revealed, err = p.ToggleReveal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, revealed)
	pr, _ = f.page.presentation("c1")
	assert.True(t, pr.Hidden)
}

func TestPipeline_HighlightedOncePerSession(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture()
	f.page.highlighted = []Card{{PhotoURL: "u3", Name: "Zxqv"}}
	f.loader.add("u3", "h3")
	f.classifier.scores["u3"] = Known(0.95)
	p := f.pipeline()
	key := HighlightedKey("u3")

	waitDone(t, p.RefreshHighlighted())
	waitDone(t, p.RefreshHighlighted())
	assert.EqualValues(t, 1, f.classifier.calls.Load(), "unmatched photos are classified once per session")
	pr, ok := f.page.presentation(key)
	require.True(t, ok)
	assert.True(t, pr.Hidden)

	n, revealed, err := p.ToggleReveal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, revealed)

	waitDone(t, p.RefreshHighlighted())
	pr, _ = f.page.presentation(key)
	assert.Equal(t, Presentation{Background: RevealBackground}, pr, "a later pass keeps the reveal")
	assert.EqualValues(t, 1, f.classifier.calls.Load())
}

func TestPipeline_HighlightedRetriesFailedLoad(t *testing.T) {
	f := newPipelineFixture()
	f.page.highlighted = []Card{{Key: "hl", PhotoURL: "u9", Name: "Zxqv"}}
	f.classifier.scores["u9"] = Known(0.2)
	p := f.pipeline()

	waitDone(t, p.RefreshHighlighted())
	_, ok := f.page.presentation("hl")
	assert.False(t, ok)

	f.loader.add("u9", "h9")
	waitDone(t, p.RefreshHighlighted())
	_, ok = f.page.presentation("hl")
	assert.True(t, ok)
	assert.Equal(t, 2, f.loader.count("u9"))
}

func TestPipeline_ConcurrentPassesKeepScores(t *testing.T) {
	f := newPipelineFixture(card("c1", "1", "u1", "Zxqv"))
	f.loader.add("u1", "h1")
	f.loader.add("u3", "h3")
	f.classifier.scores["u1"] = Known(0.8)
	f.classifier.scores["u3"] = Known(0.2)
	f.page.highlighted = []Card{{PhotoURL: "u3", Name: "Zxqv"}}
	f.page.hlEntered = make(chan struct{})
	f.page.hlRelease = make(chan struct{})
	p := f.pipeline()

	highlighted := p.RefreshHighlighted()
	waitDone(t, f.page.hlEntered)

	waitDone(t, p.Refresh())
	assert.JSONEq(t, `{"1":0.8}`, f.repo.raw(NamespacePhotoGender))

	close(f.page.hlRelease)
	waitDone(t, highlighted)
	assert.JSONEq(t, `{"1":0.8}`, f.repo.raw(NamespacePhotoGender), "the highlighted pass keeps scores stored meanwhile")
}
