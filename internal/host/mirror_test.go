package host

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror_Cards(t *testing.T) {
	m := NewMirror(log.DefaultLogger)
	m.ReplaceCards([]CardState{
		{Card: biz.Card{ID: "1", PhotoURL: "u1", Name: "A"}},
		{Card: biz.Card{Key: "k2", ID: "2", PhotoURL: "u2", Name: "B"}, Hidden: true},
	}, []CardState{
		{Card: biz.Card{PhotoURL: "u3", Name: "C"}},
		{Card: biz.Card{PhotoURL: "u4", Name: "D"}, Hidden: true},
	})

	cards, err := m.Cards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "1", cards[0].Key, "key defaults to the profile id")

	hl, err := m.Highlighted(context.Background())
	require.NoError(t, err)
	require.Len(t, hl, 1, "hidden highlighted cards are skipped")
	assert.Equal(t, biz.HighlightedKey("u3"), hl[0].Key)
}

func TestMirror_PresentationsAndReset(t *testing.T) {
	ctx := context.Background()
	m := NewMirror(log.DefaultLogger)
	require.NoError(t, m.Apply(ctx, "1", biz.Presentation{Hidden: true}))
	assert.Equal(t, map[string]biz.Presentation{"1": {Hidden: true}}, m.Presentations())

	m.Reset()
	assert.Empty(t, m.Presentations())
	cards, _ := m.Cards(ctx)
	assert.Empty(t, cards)
}

func TestMirror_WaitProfilePhoto(t *testing.T) {
	m := NewMirror(log.DefaultLogger)

	done := make(chan string, 1)
	go func() {
		url, err := m.WaitProfilePhoto(context.Background(), "7")
		assert.NoError(t, err)
		done <- url
	}()

	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.waiters["7"]) == 1
	}, time.Second, time.Millisecond)
	m.ReportProfilePhoto("7", "u7")

	select {
	case url := <-done:
		assert.Equal(t, "u7", url)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}

	url, err := m.WaitProfilePhoto(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "u7", url, "already reported photos return at once")
}

func TestMirror_WaitProfilePhotoTimeout(t *testing.T) {
	m := NewMirror(log.DefaultLogger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.WaitProfilePhoto(ctx, "8")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	m.mu.Lock()
	assert.Empty(t, m.waiters)
	m.mu.Unlock()
}

func TestMirror_Notifications(t *testing.T) {
	m := NewMirror(log.DefaultLogger)
	assert.Equal(t, []biz.Notification{}, m.DrainNotifications())

	for i := 0; i < maxNotifications+5; i++ {
		m.Notify(context.Background(), biz.Notification{Title: "t"})
	}
	assert.Len(t, m.DrainNotifications(), maxNotifications)
	assert.Empty(t, m.DrainNotifications())
}
