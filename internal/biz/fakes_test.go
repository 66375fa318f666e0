package biz

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/pkg/names"
)

var errBoom = errors.New("boom")

// memRepo is an in-memory CacheRepo.
type memRepo struct {
	mu      sync.Mutex
	values  map[Namespace][]byte
	writes  map[Namespace]int
	failGet error
	failSet error
}

func newMemRepo() *memRepo {
	return &memRepo{values: map[Namespace][]byte{}, writes: map[Namespace]int{}}
}

func (r *memRepo) Get(_ context.Context, ns Namespace) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	v, ok := r.values[ns]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (r *memRepo) Set(_ context.Context, ns Namespace, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSet != nil {
		return r.failSet
	}
	r.values[ns] = append([]byte(nil), value...)
	r.writes[ns]++
	return nil
}

func (r *memRepo) put(ns Namespace, raw string) {
	r.mu.Lock()
	r.values[ns] = []byte(raw)
	r.mu.Unlock()
}

func (r *memRepo) raw(ns Namespace) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.values[ns])
}

func (r *memRepo) writeCount(ns Namespace) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[ns]
}

// taggedImage carries the hash the fake hasher reports for it.
type taggedImage struct {
	image.Image
	hash PhotoHash
}

func photoOf(url string, h PhotoHash) *Photo {
	return &Photo{
		URL:   url,
		Image: taggedImage{Image: image.NewGray(image.Rect(0, 0, 1, 1)), hash: h},
		Data:  []byte(url),
	}
}

type fakeHasher struct{}

func (fakeHasher) Hash(img image.Image) (PhotoHash, error) {
	t, ok := img.(taggedImage)
	if !ok || t.hash == "" {
		return "", errBoom
	}
	return t.hash, nil
}

// fakeLoader serves photos by URL and counts loads.
type fakeLoader struct {
	mu     sync.Mutex
	photos map[string]*Photo
	loads  map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{photos: map[string]*Photo{}, loads: map[string]int{}}
}

func (l *fakeLoader) add(url string, h PhotoHash) {
	l.mu.Lock()
	l.photos[url] = photoOf(url, h)
	l.mu.Unlock()
}

func (l *fakeLoader) Load(_ context.Context, url string) (*Photo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[url]++
	p, ok := l.photos[url]
	if !ok {
		return nil, ErrTransientIO.WithCause(fmt.Errorf("404 %s", url))
	}
	return p, nil
}

func (l *fakeLoader) count(url string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[url]
}

// fakeClassifier scores photos by URL.
type fakeClassifier struct {
	mu     sync.Mutex
	scores map[string]Score
	fail   map[string]bool
	calls  atomic.Int32
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{scores: map[string]Score{}, fail: map[string]bool{}}
}

func (c *fakeClassifier) MaleProbability(_ context.Context, photo *Photo) (Score, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[photo.URL] {
		return Unknown, errBoom
	}
	return c.scores[photo.URL], nil
}

type fakeNames map[string]float64

func (f fakeNames) MaleProbability(name string) (float64, names.MatchKind) {
	n := strings.ToLower(name)
	if p, ok := f[n]; ok {
		return p, names.MatchExact
	}
	if p, ok := f[names.Fold(n)]; ok {
		return p, names.MatchFolded
	}
	return 0, names.MatchNone
}

// fakePage is a host page holding cards and recording presentations.
type fakePage struct {
	mu          sync.Mutex
	cards       []Card
	highlighted []Card
	applied     map[string]Presentation
	photos      map[ProfileID]string
	// hlEntered and hlRelease, when set, hold Highlighted until released.
	hlEntered chan struct{}
	hlRelease chan struct{}
}

func newFakePage(cards ...Card) *fakePage {
	return &fakePage{
		cards:   cards,
		applied: map[string]Presentation{},
		photos:  map[ProfileID]string{},
	}
}

func (p *fakePage) Cards(context.Context) ([]Card, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Card(nil), p.cards...), nil
}

func (p *fakePage) Highlighted(context.Context) ([]Card, error) {
	if p.hlRelease != nil {
		close(p.hlEntered)
		<-p.hlRelease
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Card(nil), p.highlighted...), nil
}

func (p *fakePage) Apply(_ context.Context, key string, pr Presentation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied[key] = pr
	return nil
}

func (p *fakePage) WaitProfilePhoto(ctx context.Context, id ProfileID) (string, error) {
	p.mu.Lock()
	url, ok := p.photos[id]
	p.mu.Unlock()
	if ok {
		return url, nil
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func (p *fakePage) presentation(key string) (Presentation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.applied[key]
	return pr, ok
}

// fakeNotifier records notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *fakeNotifier) Notify(_ context.Context, item Notification) {
	n.mu.Lock()
	n.items = append(n.items, item)
	n.mu.Unlock()
}

func (n *fakeNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

// logRecorder is a log.Logger that keeps every line.
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) Log(level log.Level, keyvals ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level.String()+" "+fmt.Sprint(keyvals...))
	return nil
}

func (r *logRecorder) count(level log.Level, substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if strings.HasPrefix(l, level.String()+" ") && strings.Contains(l, substr) {
			n++
		}
	}
	return n
}
