package biz

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/pkg/names"
)

// Score is the probability that a profile is male, or Unknown.
type Score struct {
	P     float64
	Known bool
}

// Unknown means the estimator had nothing to say. It is not the same as 0.
var Unknown = Score{}

// Known returns a score holding p.
func Known(p float64) Score {
	return Score{P: p, Known: true}
}

func (s Score) String() string {
	if !s.Known {
		return "unknown"
	}
	return strconv.FormatFloat(s.P, 'f', 3, 64)
}

// Lookup is the state of a photo-gender cache entry.
type Lookup int

const (
	// LookupAbsent means the id was never classified.
	LookupAbsent Lookup = iota
	// LookupUnknown means the entry exists but holds no value.
	LookupUnknown
	// LookupKnown means the entry holds a probability.
	LookupKnown
)

// GenderCache maps profile ids to photo-derived male probabilities.
// Entries decoded as null are kept as LookupUnknown and retried.
type GenderCache struct {
	mu      sync.RWMutex
	entries map[ProfileID]*float64
}

// NewGenderCache returns an empty cache.
func NewGenderCache() *GenderCache {
	return &GenderCache{entries: make(map[ProfileID]*float64)}
}

// LoadGenderCache reads the photoGenderCache namespace.
func LoadGenderCache(ctx context.Context, repo CacheRepo) (*GenderCache, error) {
	entries, err := LoadNamespace(ctx, repo, NamespacePhotoGender, map[ProfileID]*float64{})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make(map[ProfileID]*float64)
	}
	return &GenderCache{entries: entries}, nil
}

// Save writes the photoGenderCache namespace. Known scores stored since c
// was loaded are merged in first; scores held by c win.
func (c *GenderCache) Save(ctx context.Context, repo CacheRepo) error {
	return mergeSave(func() error {
		stored, err := LoadGenderCache(ctx, repo)
		if err != nil {
			return err
		}
		c.merge(stored)
		return SaveNamespace(ctx, repo, NamespacePhotoGender, c)
	})
}

func (c *GenderCache) merge(other *GenderCache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range other.entries {
		if p == nil {
			continue
		}
		if cur := c.entries[id]; cur == nil {
			c.entries[id] = p
		}
	}
}

// Get returns the cached score for id and the state of its entry.
func (c *GenderCache) Get(id ProfileID) (Score, Lookup) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[id]
	switch {
	case !ok:
		return Unknown, LookupAbsent
	case p == nil:
		return Unknown, LookupUnknown
	default:
		return Known(*p), LookupKnown
	}
}

// Put stores a known score. Unknown scores are ignored.
func (c *GenderCache) Put(id ProfileID, s Score) {
	if !s.Known {
		return
	}
	p := s.P
	c.mu.Lock()
	c.entries[id] = &p
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *GenderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MarshalJSON writes known scores only.
func (c *GenderCache) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	known := make(map[ProfileID]float64, len(c.entries))
	for id, p := range c.entries {
		if p != nil {
			known[id] = *p
		}
	}
	return json.Marshal(known)
}

// NameTable resolves a display name to a male probability.
type NameTable interface {
	MaleProbability(name string) (float64, names.MatchKind)
}

// PhotoClassifier estimates the male probability of the face in a photo.
// It returns Unknown when no single face is found.
type PhotoClassifier interface {
	MaleProbability(ctx context.Context, photo *Photo) (Score, error)
}

// GenderEstimator produces name and photo scores.
type GenderEstimator struct {
	names      NameTable
	classifier PhotoClassifier
	log        *log.Helper
}

// NewGenderEstimator creates a GenderEstimator.
func NewGenderEstimator(table NameTable, classifier PhotoClassifier, logger log.Logger) *GenderEstimator {
	return &GenderEstimator{
		names:      table,
		classifier: classifier,
		log:        log.NewHelper(log.With(logger, "module", "biz/gender")),
	}
}

// NameScore estimates from the display name.
func (e *GenderEstimator) NameScore(name string) Score {
	p, kind := e.names.MaleProbability(name)
	if kind == names.MatchNone {
		return Unknown
	}
	return Known(p)
}

// CachedPhotoScore returns a known cached score without classifying.
func (e *GenderEstimator) CachedPhotoScore(id ProfileID, cache *GenderCache) (Score, bool) {
	if id == "" || cache == nil {
		return Unknown, false
	}
	s, state := cache.Get(id)
	return s, state == LookupKnown
}

// PhotoScore estimates from the photo. When id is non-empty the cache is
// consulted first and a known result is stored under id. Classifier
// failures are logged and yield Unknown.
func (e *GenderEstimator) PhotoScore(ctx context.Context, id ProfileID, photo *Photo, cache *GenderCache) Score {
	if s, ok := e.CachedPhotoScore(id, cache); ok {
		return s
	}
	if photo == nil {
		return Unknown
	}

	s, err := e.classifier.MaleProbability(ctx, photo)
	if err != nil {
		e.log.WithContext(ctx).Errorf("photo classification failed for %s: %v", photo.URL, err)
		return Unknown
	}
	if id != "" && cache != nil {
		cache.Put(id, s)
	}
	return s
}
