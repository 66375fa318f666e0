// Package host mirrors the state of the browser page that drives the
// daemon: the cards it currently renders, the presentations decided for
// them, the photo of an open profile and pending user notifications.
package host

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/mednat/tandem-extras/internal/biz"
)

// ProviderSet is host providers.
var ProviderSet = wire.NewSet(
	NewMirror,
	wire.Bind(new(biz.Page), new(*Mirror)),
	wire.Bind(new(biz.ProfilePage), new(*Mirror)),
	wire.Bind(new(biz.Notifier), new(*Mirror)),
)

const maxNotifications = 50

// CardState is a card as reported by the page.
type CardState struct {
	biz.Card
	// Hidden is set for cards the page currently does not display.
	Hidden bool
}

// Mirror is the daemon-side copy of the page.
type Mirror struct {
	log *log.Helper

	mu            sync.Mutex
	cards         []CardState
	highlighted   []CardState
	presentations map[string]biz.Presentation
	photos        map[biz.ProfileID]string
	waiters       map[biz.ProfileID][]chan string
	notifications []biz.Notification
}

// NewMirror creates an empty Mirror.
func NewMirror(logger log.Logger) *Mirror {
	return &Mirror{
		log:           log.NewHelper(log.With(logger, "module", "host/mirror")),
		presentations: make(map[string]biz.Presentation),
		photos:        make(map[biz.ProfileID]string),
		waiters:       make(map[biz.ProfileID][]chan string),
	}
}

// Reset forgets everything tied to the previous page. Late presentations for
// cards of the old page are ignored by the page.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = nil
	m.highlighted = nil
	m.presentations = make(map[string]biz.Presentation)
	m.photos = make(map[biz.ProfileID]string)
}

// ReplaceCards sets the cards the page renders. Cards without a key are
// keyed by profile id, highlighted cards by their photo URL.
func (m *Mirror) ReplaceCards(cards, highlighted []CardState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = make([]CardState, 0, len(cards))
	for _, c := range cards {
		if c.Key == "" {
			c.Key = string(c.ID)
		}
		m.cards = append(m.cards, c)
	}
	m.highlighted = make([]CardState, 0, len(highlighted))
	for _, c := range highlighted {
		if c.Key == "" && c.PhotoURL != "" {
			c.Key = biz.HighlightedKey(c.PhotoURL)
		}
		m.highlighted = append(m.highlighted, c)
	}
}

// Cards returns the visible regular cards.
func (m *Mirror) Cards(context.Context) ([]biz.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.cards), nil
}

// Highlighted returns the visible highlighted cards.
func (m *Mirror) Highlighted(context.Context) ([]biz.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.highlighted), nil
}

func visible(states []CardState) []biz.Card {
	out := make([]biz.Card, 0, len(states))
	for _, c := range states {
		if !c.Hidden {
			out = append(out, c.Card)
		}
	}
	return out
}

// Apply records the presentation for key.
func (m *Mirror) Apply(_ context.Context, key string, p biz.Presentation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presentations[key] = p
	return nil
}

// Presentations returns every presentation decided since the last reset.
func (m *Mirror) Presentations() map[string]biz.Presentation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]biz.Presentation, len(m.presentations))
	for k, v := range m.presentations {
		out[k] = v
	}
	return out
}

// ReportProfilePhoto records the photo of an open profile and wakes waiters.
func (m *Mirror) ReportProfilePhoto(id biz.ProfileID, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[id] = url
	for _, ch := range m.waiters[id] {
		ch <- url
	}
	delete(m.waiters, id)
}

// WaitProfilePhoto blocks until the photo of id is reported or ctx ends.
func (m *Mirror) WaitProfilePhoto(ctx context.Context, id biz.ProfileID) (string, error) {
	m.mu.Lock()
	if url, ok := m.photos[id]; ok {
		m.mu.Unlock()
		return url, nil
	}
	ch := make(chan string, 1)
	m.waiters[id] = append(m.waiters[id], ch)
	m.mu.Unlock()

	select {
	case url := <-ch:
		return url, nil
	case <-ctx.Done():
		m.removeWaiter(id, ch)
		return "", ctx.Err()
	}
}

func (m *Mirror) removeWaiter(id biz.ProfileID, ch chan string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.waiters[id]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.waiters, id)
	} else {
		m.waiters[id] = list
	}
}

// Notify queues a banner for the page. The oldest banners are dropped once
// the queue is full.
func (m *Mirror) Notify(_ context.Context, n biz.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notifications) >= maxNotifications {
		m.log.Warnf("dropping notification %q", m.notifications[0].Title)
		m.notifications = m.notifications[1:]
	}
	m.notifications = append(m.notifications, n)
}

// DrainNotifications returns and clears the queued banners.
func (m *Mirror) DrainNotifications() []biz.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notifications
	m.notifications = nil
	if out == nil {
		out = []biz.Notification{}
	}
	return out
}
