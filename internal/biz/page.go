package biz

import (
	"context"
	"fmt"

	"github.com/mednat/tandem-extras/internal/pkg/hash"
)

// Card is one profile tile as reported by the host page.
type Card struct {
	// Key identifies the tile on the page.
	Key      string
	ID       ProfileID
	PhotoURL string
	Name     string
}

// Validate reports ErrInvalidCard when a regular card lacks a field.
func (c Card) Validate() error {
	if c.ID == "" || c.PhotoURL == "" || c.Name == "" {
		return ErrInvalidCard.WithCause(fmt.Errorf("id=%q photo=%q name=%q", c.ID, c.PhotoURL, c.Name))
	}
	return nil
}

// HighlightedKey derives a stable tile key for a highlighted card, which
// carries no profile id.
func HighlightedKey(photoURL string) string {
	return "hl-" + hash.Hex(hash.FastHash(photoURL))
}

// Page is the listings page of the host.
type Page interface {
	// Cards returns the visible regular cards.
	Cards(ctx context.Context) ([]Card, error)
	// Highlighted returns the visible highlighted cards. Their IDs are empty.
	Highlighted(ctx context.Context) ([]Card, error)
	// Apply sets the presentation of the card with key.
	Apply(ctx context.Context, key string, p Presentation) error
}

// ProfilePage is the single-profile page of the host.
type ProfilePage interface {
	// WaitProfilePhoto blocks until the photo URL of id is known or ctx ends.
	WaitProfilePhoto(ctx context.Context, id ProfileID) (string, error)
}

// Notification is a user-visible banner.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier shows banners to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
