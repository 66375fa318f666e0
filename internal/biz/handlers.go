package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// closed is returned for triggers that have nothing to wait for.
var closed = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// ListingsHandler starts a fresh pipeline on every listings visit.
type ListingsHandler struct {
	deps   PipelineDeps
	logger log.Logger
	log    *log.Helper

	mu      sync.Mutex
	session *Pipeline
}

// NewListingsHandler creates a ListingsHandler.
func NewListingsHandler(repo CacheRepo, page Page, loader ImageLoader, resolver *Resolver, estimator *GenderEstimator, notifier Notifier, cfg FilterConfig, logger log.Logger) *ListingsHandler {
	return &ListingsHandler{
		deps: PipelineDeps{
			Repo:      repo,
			Page:      page,
			Loader:    loader,
			Resolver:  resolver,
			Estimator: estimator,
			Notifier:  notifier,
			Config:    cfg,
		},
		logger: logger,
		log:    log.NewHelper(log.With(logger, "module", "biz/listings")),
	}
}

// Visit starts a new session. Passes run when the page reports its cards.
func (h *ListingsHandler) Visit(ctx context.Context, _ Route) error {
	p := NewPipeline(context.WithoutCancel(ctx), h.deps, h.logger)
	h.mu.Lock()
	h.session = p
	h.mu.Unlock()
	h.log.WithContext(ctx).Debug("listings session started")
	return nil
}

// Cleanup detaches the session. Running passes finish on their own.
func (h *ListingsHandler) Cleanup() {
	h.mu.Lock()
	h.session = nil
	h.mu.Unlock()
}

// Session returns the active pipeline, or nil off the listings page.
func (h *ListingsHandler) Session() *Pipeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// OnCardsChanged triggers a regular pass. It is a no-op when detached.
func (h *ListingsHandler) OnCardsChanged() <-chan struct{} {
	if p := h.Session(); p != nil {
		return p.Refresh()
	}
	return closed
}

// OnHighlightedChanged triggers a highlighted pass. It is a no-op when detached.
func (h *ListingsHandler) OnHighlightedChanged() <-chan struct{} {
	if p := h.Session(); p != nil {
		return p.RefreshHighlighted()
	}
	return closed
}

// ToggleReveal reveals or re-hides the cards hidden this session.
func (h *ListingsHandler) ToggleReveal(ctx context.Context) (int, bool, error) {
	p := h.Session()
	if p == nil {
		return 0, false, ErrNotListings
	}
	return p.ToggleReveal(ctx)
}

// ProfileHandler records the photo hash of visited profiles.
type ProfileHandler struct {
	repo     CacheRepo
	page     ProfilePage
	loader   ImageLoader
	resolver *Resolver
	notifier Notifier
	timeout  time.Duration
	log      *log.Helper

	mu      sync.Mutex
	current ProfileID
	wg      sync.WaitGroup
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(repo CacheRepo, page ProfilePage, loader ImageLoader, resolver *Resolver, notifier Notifier, cfg FilterConfig, logger log.Logger) *ProfileHandler {
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = DefaultFilterConfig().ElementTimeout
	}
	return &ProfileHandler{
		repo:     repo,
		page:     page,
		loader:   loader,
		resolver: resolver,
		notifier: notifier,
		timeout:  cfg.ElementTimeout,
		log:      log.NewHelper(log.With(logger, "module", "biz/profile")),
	}
}

// Visit starts capturing the profile's photo hash in the background.
func (h *ProfileHandler) Visit(ctx context.Context, r Route) error {
	if r.ID == "" {
		return nil
	}
	h.mu.Lock()
	h.current = r.ID
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.capture(context.WithoutCancel(ctx), r.ID); err != nil {
			h.log.Errorf("capture profile %s: %v", r.ID, err)
		}
	}()
	return nil
}

// Cleanup forgets the current profile. Captures in flight keep running.
func (h *ProfileHandler) Cleanup() {
	h.mu.Lock()
	h.current = ""
	h.mu.Unlock()
}

// Wait blocks until every capture started so far has finished.
func (h *ProfileHandler) Wait() {
	h.wg.Wait()
}

// Current returns the profile being viewed, if any.
func (h *ProfileHandler) Current() ProfileID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *ProfileHandler) capture(ctx context.Context, id ProfileID) error {
	logger := h.log.WithContext(ctx)

	identity, err := LoadIdentityMap(ctx, h.repo)
	if err != nil {
		return err
	}
	if hash, ok := identity.HashOf(id); ok {
		logger.Debugf("profile %s already hashed as %s", id, hash)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	url, err := h.page.WaitProfilePhoto(waitCtx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout.WithCause(fmt.Errorf("profile photo of %s: %w", id, err))
		}
		return err
	}

	photo, err := h.loader.Load(ctx, url)
	if err != nil {
		return err
	}
	hash, err := h.resolver.ResolveAndRecord(ctx, id, photo, identity)
	if err != nil {
		return err
	}
	if err := identity.Save(ctx, h.repo); err != nil {
		return err
	}
	logger.Infof("recorded profile %s as %s", id, hash)
	return nil
}

// ToggleBlocklist adds id to the blocklist, or removes it when present.
// An empty id toggles the profile being viewed.
func (h *ProfileHandler) ToggleBlocklist(ctx context.Context, id ProfileID) (bool, error) {
	if id == "" {
		id = h.Current()
	}
	if id == "" {
		return false, ErrInvalidCard.WithCause(fmt.Errorf("no profile to toggle"))
	}

	var added bool
	err := mergeSave(func() error {
		blocklist, err := LoadIDSet(ctx, h.repo, NamespaceBlocklist)
		if err != nil {
			return err
		}
		if added = blocklist.Add(id); !added {
			blocklist.Remove(id)
		}
		return SaveNamespace(ctx, h.repo, NamespaceBlocklist, blocklist)
	})
	if err != nil {
		return false, err
	}

	msg := fmt.Sprintf("Profile %s removed from blocklist", id)
	if added {
		msg = fmt.Sprintf("Profile %s added to blocklist", id)
	}
	h.log.WithContext(ctx).Info(msg)
	if h.notifier != nil {
		h.notifier.Notify(ctx, Notification{Title: "Blocklist", Message: msg})
	}
	return added, nil
}

// ChatsHandler records every chat the user opens.
type ChatsHandler struct {
	repo CacheRepo
	log  *log.Helper

	mu      sync.Mutex
	chatted *IDSet
}

// NewChatsHandler creates a ChatsHandler.
func NewChatsHandler(repo CacheRepo, logger log.Logger) *ChatsHandler {
	return &ChatsHandler{
		repo: repo,
		log:  log.NewHelper(log.With(logger, "module", "biz/chats")),
	}
}

// Visit adds the opened chat id to the chatted cache.
func (h *ChatsHandler) Visit(ctx context.Context, r Route) error {
	if r.ID == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.chatted == nil {
		set, err := LoadIDSet(ctx, h.repo, NamespaceChatted)
		if err != nil {
			return err
		}
		h.chatted = set
	}
	if h.chatted.Has(r.ID) {
		return nil
	}

	var fresh *IDSet
	err := mergeSave(func() error {
		var err error
		if fresh, err = LoadIDSet(ctx, h.repo, NamespaceChatted); err != nil {
			return err
		}
		fresh.Add(r.ID)
		return SaveNamespace(ctx, h.repo, NamespaceChatted, fresh)
	})
	if err != nil {
		return err
	}
	h.chatted = fresh
	h.log.WithContext(ctx).Infof("added %s to chatted cache", r.ID)
	return nil
}

// Cleanup is a no-op; the in-handler copy is refreshed before every write.
func (h *ChatsHandler) Cleanup() {}

// OtherHandler handles pages the engine does not act on.
type OtherHandler struct{}

// NewOtherHandler creates an OtherHandler.
func NewOtherHandler() *OtherHandler {
	return &OtherHandler{}
}

func (*OtherHandler) Visit(context.Context, Route) error { return nil }

func (*OtherHandler) Cleanup() {}
