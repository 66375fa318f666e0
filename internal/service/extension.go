package service

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/host"
)

// ExtensionService serves the browser page that drives the engine.
type ExtensionService struct {
	router   *biz.Router
	listings *biz.ListingsHandler
	profile  *biz.ProfileHandler
	diag     *biz.Diagnostics
	mirror   *host.Mirror
	log      *log.Helper
}

// NewExtensionService creates a new ExtensionService.
func NewExtensionService(router *biz.Router, listings *biz.ListingsHandler, profile *biz.ProfileHandler, diag *biz.Diagnostics, mirror *host.Mirror, logger log.Logger) *ExtensionService {
	return &ExtensionService{
		router:   router,
		listings: listings,
		profile:  profile,
		diag:     diag,
		mirror:   mirror,
		log:      log.NewHelper(log.With(logger, "module", "service/extension")),
	}
}

// Navigate reports a page change.
func (s *ExtensionService) Navigate(ctx context.Context, in *NavigateRequest) (*NavigateReply, error) {
	s.mirror.Reset()
	route, err := s.router.Navigate(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	return &NavigateReply{PageType: route.Type.String(), ID: string(route.ID)}, nil
}

// UpdateCards replaces the rendered cards, runs the filter passes they
// trigger and returns every presentation decided on this page.
func (s *ExtensionService) UpdateCards(ctx context.Context, in *UpdateCardsRequest) (*UpdateCardsReply, error) {
	if s.router.Current().Type != biz.PageListings {
		return nil, biz.ErrNotListings
	}

	cards := make([]host.CardState, 0, len(in.Cards))
	for _, c := range in.Cards {
		cards = append(cards, host.CardState{
			Card: biz.Card{
				Key:      c.Key,
				ID:       biz.ProfileID(c.ID),
				PhotoURL: c.PhotoURL,
				Name:     c.Name,
			},
			Hidden: c.Hidden,
		})
	}
	highlighted := make([]host.CardState, 0, len(in.Highlighted))
	for _, c := range in.Highlighted {
		highlighted = append(highlighted, host.CardState{
			Card:   biz.Card{Key: c.Key, PhotoURL: c.PhotoURL, Name: c.Name},
			Hidden: c.Hidden,
		})
	}
	s.mirror.ReplaceCards(cards, highlighted)

	waits := []<-chan struct{}{s.listings.OnCardsChanged()}
	if len(highlighted) > 0 {
		waits = append(waits, s.listings.OnHighlightedChanged())
	}
	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, biz.ErrTimeout.WithCause(fmt.Errorf("waiting for filter pass: %w", ctx.Err()))
		}
	}

	return &UpdateCardsReply{Presentations: s.mirror.Presentations()}, nil
}

// ToggleReveal reveals or re-hides the cards hidden on the listings page.
func (s *ExtensionService) ToggleReveal(ctx context.Context, _ *ToggleRevealRequest) (*ToggleRevealReply, error) {
	n, revealed, err := s.listings.ToggleReveal(ctx)
	if err != nil {
		return nil, err
	}
	return &ToggleRevealReply{Changed: n, Revealed: revealed}, nil
}

// ReportProfilePhoto delivers the photo of the open profile.
func (s *ExtensionService) ReportProfilePhoto(_ context.Context, in *ReportProfilePhotoRequest) (*ReportProfilePhotoReply, error) {
	if in.ID == "" || in.PhotoURL == "" {
		return nil, biz.ErrInvalidCard.WithCause(fmt.Errorf("id and photo_url are required"))
	}
	s.mirror.ReportProfilePhoto(biz.ProfileID(in.ID), in.PhotoURL)
	return &ReportProfilePhotoReply{}, nil
}

// ToggleBlocklist toggles blocklist membership of a profile, by default the open one.
func (s *ExtensionService) ToggleBlocklist(ctx context.Context, in *ToggleBlocklistRequest) (*ToggleBlocklistReply, error) {
	id := biz.ProfileID(in.ID)
	if id == "" {
		id = s.profile.Current()
	}
	blocked, err := s.profile.ToggleBlocklist(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ToggleBlocklistReply{ID: string(id), Blocked: blocked}, nil
}

// ListNotifications drains pending user notifications.
func (s *ExtensionService) ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsReply, error) {
	return &ListNotificationsReply{Notifications: s.mirror.DrainNotifications()}, nil
}

// Diagnostics runs the read-only cache integrity check.
func (s *ExtensionService) Diagnostics(ctx context.Context, _ *DiagnosticsRequest) (*DiagnosticsReply, error) {
	report, err := s.diag.Check(ctx)
	if err != nil {
		return nil, err
	}
	return &DiagnosticsReply{Report: report, OK: report.OK()}, nil
}
