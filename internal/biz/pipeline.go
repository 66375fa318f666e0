package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// FilterConfig tunes the listings pipeline and page handlers.
type FilterConfig struct {
	Fusion FusionPolicy
	// Workers bounds the cards processed concurrently in one pass.
	Workers int
	// ElementTimeout bounds waits for page elements.
	ElementTimeout time.Duration
	// MaxHashDistance lets highlighted photos match a recorded hash within
	// this many differing bits. 0 requires an exact match.
	MaxHashDistance int
}

// DefaultFilterConfig returns the stock configuration.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Fusion:         DefaultFusionPolicy(),
		Workers:        8,
		ElementTimeout: 5 * time.Second,
	}
}

// processedSet holds the cards classified during one listings session.
type processedSet[K comparable] struct {
	mu   sync.Mutex
	keys map[K]struct{}
}

func newProcessedSet[K comparable]() *processedSet[K] {
	return &processedSet[K]{keys: make(map[K]struct{})}
}

// claim marks k processed and reports whether the caller got it first.
func (s *processedSet[K]) claim(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

func (s *processedSet[K]) release(k K) {
	s.mu.Lock()
	delete(s.keys, k)
	s.mu.Unlock()
}

func (s *processedSet[K]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// PipelineDeps are the collaborators shared by every listings session.
type PipelineDeps struct {
	Repo      CacheRepo
	Page      Page
	Loader    ImageLoader
	Resolver  *Resolver
	Estimator *GenderEstimator
	Notifier  Notifier
	Config    FilterConfig
}

// Pipeline filters the cards of one listings session.
type Pipeline struct {
	PipelineDeps

	processed *processedSet[ProfileID]
	// highlightedDone is keyed by card key; highlighted cards carry no id.
	highlightedDone *processedSet[string]
	profiles        *PassRunner
	highlighted     *PassRunner
	log             *log.Helper

	mu       sync.Mutex
	hidden   map[string]struct{}
	revealed map[string]struct{}
}

// NewPipeline creates a session whose passes run on ctx.
func NewPipeline(ctx context.Context, deps PipelineDeps, logger log.Logger) *Pipeline {
	p := &Pipeline{
		PipelineDeps:    deps,
		processed:       newProcessedSet[ProfileID](),
		highlightedDone: newProcessedSet[string](),
		hidden:          make(map[string]struct{}),
		revealed:        make(map[string]struct{}),
		log:             log.NewHelper(log.With(logger, "module", "biz/pipeline")),
	}
	p.profiles = NewPassRunner(ctx, "profiles", p.filterProfiles, deps.Notifier, logger)
	p.highlighted = NewPassRunner(ctx, "highlighted profiles", p.filterHighlighted, deps.Notifier, logger)
	return p
}

// Refresh schedules a regular-card pass.
func (p *Pipeline) Refresh() <-chan struct{} {
	return p.profiles.Trigger()
}

// RefreshHighlighted schedules a highlighted-card pass.
func (p *Pipeline) RefreshHighlighted() <-chan struct{} {
	return p.highlighted.Trigger()
}

// Processed returns the number of ids classified this session.
func (p *Pipeline) Processed() int {
	return p.processed.len()
}

func (p *Pipeline) workers() int {
	if p.Config.Workers <= 0 {
		return 1
	}
	return p.Config.Workers
}

func (p *Pipeline) filterProfiles(ctx context.Context) error {
	passID := uuid.NewString()
	logger := p.log.WithContext(ctx)
	logger.Debugf("pass %s: filtering profiles", passID)

	snap, err := LoadSnapshot(ctx, p.Repo)
	if err != nil {
		return err
	}
	cards, err := p.Page.Cards(ctx)
	if err != nil {
		return ErrPassFailed.WithCause(fmt.Errorf("enumerate cards: %w", err))
	}

	var g errgroup.Group
	g.SetLimit(p.workers())
	for _, card := range cards {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = ErrPassFailed.WithCause(fmt.Errorf("card %s: panic: %v", card.ID, rec))
				}
			}()
			p.filterCard(ctx, snap, card)
			return nil
		})
	}
	cardErr := g.Wait()

	saveErr := errors.Join(
		snap.PhotoGender.Save(ctx, p.Repo),
		snap.Identity.Save(ctx, p.Repo),
	)
	logger.Debugf("pass %s: %d cards, %d processed this session", passID, len(cards), p.processed.len())
	if cardErr != nil {
		return cardErr
	}
	return saveErr
}

func (p *Pipeline) filterCard(ctx context.Context, snap *Snapshot, card Card) {
	logger := p.log.WithContext(ctx)
	if err := card.Validate(); err != nil {
		logger.Errorf("bad regular-profile card %q: %v", card.Key, err)
		return
	}
	if !p.processed.claim(card.ID) {
		return
	}

	var (
		photo      *Photo
		loadFailed bool
	)
	if _, ok := snap.Identity.HashOf(card.ID); !ok {
		var err error
		if photo, err = p.Loader.Load(ctx, card.PhotoURL); err != nil {
			// Retry on a later pass.
			p.processed.release(card.ID)
			loadFailed = true
			logger.Warnf("load photo of %s: %v", card.ID, err)
		} else if _, err := p.Resolver.ResolveAndRecord(ctx, card.ID, photo, snap.Identity); err != nil {
			logger.Warnf("resolve identity of %s: %v", card.ID, err)
		}
	}

	if snap.Excluded(card.ID) {
		logger.Debugf("hiding blocklisted or chatted profile %s", card.ID)
		p.apply(ctx, card.Key, Excluded)
		return
	}

	name := p.Estimator.NameScore(card.Name)
	face, ok := p.Estimator.CachedPhotoScore(card.ID, snap.PhotoGender)
	if !ok {
		if photo == nil && !loadFailed {
			var err error
			if photo, err = p.Loader.Load(ctx, card.PhotoURL); err != nil {
				logger.Warnf("load photo of %s: %v", card.ID, err)
			}
		}
		face = p.Estimator.PhotoScore(ctx, card.ID, photo, snap.PhotoGender)
	}

	d := p.Config.Fusion.Fuse(name, face)
	logger.Debugf("profile %s (%s): name=%s photo=%s -> %s hide=%v", card.ID, card.Name, name, face, d.Source, d.Hide)
	if d.Changed() {
		p.apply(ctx, card.Key, d)
	}
}

func (p *Pipeline) filterHighlighted(ctx context.Context) error {
	logger := p.log.WithContext(ctx)
	logger.Debug("filtering highlighted profiles")

	snap, err := LoadSnapshot(ctx, p.Repo)
	if err != nil {
		return err
	}
	cards, err := p.Page.Highlighted(ctx)
	if err != nil {
		return ErrPassFailed.WithCause(fmt.Errorf("enumerate highlighted cards: %w", err))
	}

	var g errgroup.Group
	g.SetLimit(p.workers())
	for _, card := range cards {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = ErrPassFailed.WithCause(fmt.Errorf("highlighted card %s: panic: %v", card.Key, rec))
				}
			}()
			p.filterHighlightedCard(ctx, snap, card)
			return nil
		})
	}
	cardErr := g.Wait()

	saveErr := snap.PhotoGender.Save(ctx, p.Repo)
	if cardErr != nil {
		return cardErr
	}
	return saveErr
}

func (p *Pipeline) filterHighlightedCard(ctx context.Context, snap *Snapshot, card Card) {
	logger := p.log.WithContext(ctx)
	if card.PhotoURL == "" || card.Name == "" {
		logger.Errorf("bad highlighted-profile card %q: missing photo or name", card.Key)
		return
	}
	if card.Key == "" {
		card.Key = HighlightedKey(card.PhotoURL)
	}
	if !p.highlightedDone.claim(card.Key) {
		return
	}

	var id ProfileID
	photo, err := p.Loader.Load(ctx, card.PhotoURL)
	if err != nil {
		// Retry on a later pass.
		p.highlightedDone.release(card.Key)
		logger.Warnf("load highlighted photo %s: %v", card.PhotoURL, err)
	} else if h, err := p.Resolver.Lookup(photo); err != nil {
		logger.Warnf("hash highlighted photo %s: %v", card.PhotoURL, err)
	} else if matched, ok := snap.Identity.Nearest(h, p.Config.MaxHashDistance); ok {
		id = matched
	}

	if id != "" && snap.Excluded(id) {
		logger.Debugf("hiding blocklisted or chatted highlighted profile %s", id)
		p.apply(ctx, card.Key, Excluded)
		return
	}

	name := p.Estimator.NameScore(card.Name)
	face := p.Estimator.PhotoScore(ctx, id, photo, snap.PhotoGender)
	if d := p.Config.Fusion.Fuse(name, face); d.Changed() {
		p.apply(ctx, card.Key, d)
	}
}

func (p *Pipeline) apply(ctx context.Context, key string, d Decision) {
	if err := p.Page.Apply(ctx, key, d.Presentation()); err != nil {
		p.log.WithContext(ctx).Warnf("apply presentation to %s: %v", key, err)
		return
	}
	if d.Hide {
		p.mu.Lock()
		p.hidden[key] = struct{}{}
		delete(p.revealed, key)
		p.mu.Unlock()
	}
}

// ToggleReveal shows every card hidden this session with a marker tint, or,
// when cards are currently revealed, hides them again. It returns the
// number of cards changed and whether they are now revealed.
func (p *Pipeline) ToggleReveal(ctx context.Context) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.revealed) > 0 {
		n := 0
		for key := range p.revealed {
			if err := p.Page.Apply(ctx, key, Presentation{Hidden: true}); err != nil {
				return n, true, err
			}
			delete(p.revealed, key)
			p.hidden[key] = struct{}{}
			n++
		}
		return n, false, nil
	}

	n := 0
	for key := range p.hidden {
		if err := p.Page.Apply(ctx, key, Presentation{Background: RevealBackground}); err != nil {
			return n, n > 0, err
		}
		delete(p.hidden, key)
		p.revealed[key] = struct{}{}
		n++
	}
	return n, n > 0, nil
}
