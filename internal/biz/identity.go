package biz

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/pkg/hash"
)

// ProfileID is the opaque id the site gives a profile.
type ProfileID string

// PhotoHash is the 16 hex digit perceptual hash of a profile's primary photo.
type PhotoHash string

// Photo is a decoded primary photo together with its encoded bytes.
type Photo struct {
	URL   string
	Image image.Image
	Data  []byte
}

// ImageLoader fetches and decodes a photo by URL.
type ImageLoader interface {
	Load(ctx context.Context, url string) (*Photo, error)
}

// PhotoHasher computes the perceptual hash of a decoded image.
type PhotoHasher interface {
	Hash(img image.Image) (PhotoHash, error)
}

// RecordOutcome describes what Record changed.
type RecordOutcome struct {
	// Displaced is the id the hash mapped to before, if it was another id.
	Displaced ProfileID
	// SelfCollision is set when the hash already mapped to the same id.
	SelfCollision bool
	// Rehashed is the hash the id mapped to before, if it was another hash.
	Rehashed PhotoHash
}

// IdentityMap holds the forward and reverse id/hash mappings.
type IdentityMap struct {
	mu      sync.RWMutex
	forward map[ProfileID]PhotoHash
	reverse map[PhotoHash]ProfileID
}

// NewIdentityMap wraps the given maps. Nil maps are allocated.
func NewIdentityMap(forward map[ProfileID]PhotoHash, reverse map[PhotoHash]ProfileID) *IdentityMap {
	if forward == nil {
		forward = make(map[ProfileID]PhotoHash)
	}
	if reverse == nil {
		reverse = make(map[PhotoHash]ProfileID)
	}
	return &IdentityMap{forward: forward, reverse: reverse}
}

// LoadIdentityMap reads both identity namespaces.
func LoadIdentityMap(ctx context.Context, repo CacheRepo) (*IdentityMap, error) {
	forward, err := LoadNamespace(ctx, repo, NamespaceIDToHash, map[ProfileID]PhotoHash{})
	if err != nil {
		return nil, err
	}
	reverse, err := LoadNamespace(ctx, repo, NamespaceHashToID, map[PhotoHash]ProfileID{})
	if err != nil {
		return nil, err
	}
	return NewIdentityMap(forward, reverse), nil
}

// Save writes both identity namespaces. Mappings stored since m was loaded
// are merged in first; mappings held by m win.
func (m *IdentityMap) Save(ctx context.Context, repo CacheRepo) error {
	return mergeSave(func() error {
		stored, err := LoadIdentityMap(ctx, repo)
		if err != nil {
			return err
		}
		m.merge(stored)
		forward, reverse := m.Forward(), m.Reverse()
		if err := SaveNamespace(ctx, repo, NamespaceIDToHash, forward); err != nil {
			return err
		}
		return SaveNamespace(ctx, repo, NamespaceHashToID, reverse)
	})
}

func (m *IdentityMap) merge(other *IdentityMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range other.forward {
		if _, ok := m.forward[id]; !ok {
			m.forward[id] = h
		}
	}
	for h, id := range other.reverse {
		if _, ok := m.reverse[h]; !ok {
			m.reverse[h] = id
		}
	}
}

// HashOf returns the recorded hash of id.
func (m *IdentityMap) HashOf(id ProfileID) (PhotoHash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.forward[id]
	return h, ok
}

// IDOf returns the id most recently recorded for h.
func (m *IdentityMap) IDOf(h PhotoHash) (ProfileID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.reverse[h]
	return id, ok
}

// Nearest returns the id whose hash is closest to h within maxDistance bits.
// An exact match always wins; maxDistance 0 only accepts exact matches.
func (m *IdentityMap) Nearest(h PhotoHash, maxDistance int) (ProfileID, bool) {
	if id, ok := m.IDOf(h); ok || maxDistance <= 0 {
		return id, ok
	}
	target, err := hash.ParseHex(string(h))
	if err != nil {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		best     ProfileID
		bestDist = maxDistance + 1
	)
	for candidate, id := range m.reverse {
		v, err := hash.ParseHex(string(candidate))
		if err != nil {
			continue
		}
		if d := hash.HammingDistance(target, v); d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	return best, bestDist <= maxDistance
}

// Record maps id and h to each other, overwriting older mappings.
func (m *IdentityMap) Record(id ProfileID, h PhotoHash) RecordOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out RecordOutcome
	if prev, ok := m.reverse[h]; ok {
		if prev == id {
			out.SelfCollision = true
		} else {
			out.Displaced = prev
		}
	}
	if prev, ok := m.forward[id]; ok && prev != h {
		out.Rehashed = prev
	}
	m.forward[id] = h
	m.reverse[h] = id
	return out
}

// Forward returns a copy of the id to hash map.
func (m *IdentityMap) Forward() map[ProfileID]PhotoHash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ProfileID]PhotoHash, len(m.forward))
	for k, v := range m.forward {
		out[k] = v
	}
	return out
}

// Reverse returns a copy of the hash to id map.
func (m *IdentityMap) Reverse() map[PhotoHash]ProfileID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[PhotoHash]ProfileID, len(m.reverse))
	for k, v := range m.reverse {
		out[k] = v
	}
	return out
}

// Resolver links profile ids to perceptual hashes of their photos.
type Resolver struct {
	hasher PhotoHasher
	log    *log.Helper
}

// NewResolver creates a Resolver.
func NewResolver(hasher PhotoHasher, logger log.Logger) *Resolver {
	return &Resolver{
		hasher: hasher,
		log:    log.NewHelper(log.With(logger, "module", "biz/resolver")),
	}
}

// ResolveAndRecord hashes photo and records the mapping in identity.
// The caller persists identity.
func (r *Resolver) ResolveAndRecord(ctx context.Context, id ProfileID, photo *Photo, identity *IdentityMap) (PhotoHash, error) {
	h, err := r.Lookup(photo)
	if err != nil {
		return "", err
	}

	out := identity.Record(id, h)
	logger := r.log.WithContext(ctx)
	switch {
	case out.Displaced != "":
		logger.Warnf("pHash collision: %s was mapped to %s, now %s", h, out.Displaced, id)
	case out.SelfCollision:
		logger.Debugf("pHash self-collision: %s already mapped to %s", h, id)
	}
	if out.Rehashed != "" {
		logger.Warnf("profile %s rehashed from %s to %s", id, out.Rehashed, h)
	}
	return h, nil
}

// Lookup hashes photo without recording anything.
func (r *Resolver) Lookup(photo *Photo) (PhotoHash, error) {
	if photo == nil || photo.Image == nil {
		return "", ErrTransientIO.WithCause(fmt.Errorf("no decoded photo to hash"))
	}
	h, err := r.hasher.Hash(photo.Image)
	if err != nil {
		return "", ErrTransientIO.WithCause(fmt.Errorf("hash photo %s: %w", photo.URL, err))
	}
	return h, nil
}
