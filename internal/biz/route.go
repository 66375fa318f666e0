package biz

import (
	"context"
	"strings"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// PageType classifies a site path.
type PageType int

const (
	PageOther PageType = iota
	PageListings
	PageProfile
	PageChats
)

func (t PageType) String() string {
	switch t {
	case PageListings:
		return "listings"
	case PageProfile:
		return "profile"
	case PageChats:
		return "chats"
	default:
		return "other"
	}
}

// Route is a classified path.
type Route struct {
	Type PageType
	Path string
	// ID is the profile or chat id for profile and chats pages.
	ID ProfileID
}

// ParseRoute classifies a site path.
func ParseRoute(path string) Route {
	clean := path
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if len(clean) > 1 {
		clean = strings.TrimRight(clean, "/")
	}
	if clean == "" {
		clean = "/"
	}

	r := Route{Path: clean}
	switch {
	case strings.Contains(clean, "/chats"):
		r.Type = PageChats
		if id := lastSegment(clean); id != "chats" {
			r.ID = ProfileID(id)
		}
	case clean == "/" || clean == "/en" || clean == "/community":
		r.Type = PageListings
	case strings.Contains(clean, "/community"):
		r.Type = PageProfile
		r.ID = ProfileID(lastSegment(clean))
	default:
		r.Type = PageOther
	}
	return r
}

func lastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// PageHandler owns the behaviour of one page type. Cleanup must be safe to
// call when the handler was never visited.
type PageHandler interface {
	Visit(ctx context.Context, r Route) error
	Cleanup()
}

// Router dispatches navigations to the page handlers.
type Router struct {
	handlers map[PageType]PageHandler
	log      *log.Helper

	mu      sync.Mutex
	current Route
}

// NewRouter creates a Router over the four page handlers.
func NewRouter(listings *ListingsHandler, profile *ProfileHandler, chats *ChatsHandler, other *OtherHandler, logger log.Logger) *Router {
	return &Router{
		handlers: map[PageType]PageHandler{
			PageListings: listings,
			PageProfile:  profile,
			PageChats:    chats,
			PageOther:    other,
		},
		log: log.NewHelper(log.With(logger, "module", "biz/router")),
	}
}

// Navigate cleans up every handler and visits the one matching path.
func (r *Router) Navigate(ctx context.Context, path string) (Route, error) {
	route := ParseRoute(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range []PageType{PageListings, PageProfile, PageChats, PageOther} {
		r.handlers[t].Cleanup()
	}
	r.current = route
	r.log.WithContext(ctx).Infof("navigated to %s (%s)", route.Path, route.Type)

	if err := r.handlers[route.Type].Visit(ctx, route); err != nil {
		r.log.WithContext(ctx).Errorf("visit %s: %v", route.Type, err)
		return route, err
	}
	return route, nil
}

// Current returns the last navigated route.
func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
