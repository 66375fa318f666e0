package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Namespace names one independently stored JSON value.
type Namespace string

const (
	NamespaceChatted     Namespace = "chattedCache"
	NamespaceBlocklist   Namespace = "profileBlocklist"
	NamespacePhotoGender Namespace = "photoGenderCache"
	NamespaceHashToID    Namespace = "pHashToId"
	NamespaceIDToHash    Namespace = "idToPHash"
)

// Namespaces lists every namespace the engine persists.
var Namespaces = []Namespace{
	NamespaceChatted,
	NamespaceBlocklist,
	NamespacePhotoGender,
	NamespaceHashToID,
	NamespaceIDToHash,
}

// CacheRepo is a string-keyed store of JSON values shared by every page.
// Get returns nil, nil when the namespace has never been written.
type CacheRepo interface {
	Get(ctx context.Context, ns Namespace) ([]byte, error)
	Set(ctx context.Context, ns Namespace, value []byte) error
}

// LoadNamespace reads ns into a value of type T, returning def when absent.
func LoadNamespace[T any](ctx context.Context, repo CacheRepo, ns Namespace, def T) (T, error) {
	raw, err := repo.Get(ctx, ns)
	if err != nil {
		return def, ErrTransientIO.WithCause(fmt.Errorf("get %s: %w", ns, err))
	}
	if len(raw) == 0 {
		return def, nil
	}
	v := def
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, ErrDataIntegrity.WithCause(fmt.Errorf("decode %s: %w", ns, err))
	}
	return v, nil
}

// saveMu serialises read-merge-write cycles within the process.
var saveMu sync.Mutex

// mergeSave runs fn, which re-reads a namespace, merges and writes it back,
// without interleaving with other merges of this process.
func mergeSave(fn func() error) error {
	saveMu.Lock()
	defer saveMu.Unlock()
	return fn()
}

// SaveNamespace replaces the value stored under ns.
func SaveNamespace(ctx context.Context, repo CacheRepo, ns Namespace, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ns, err)
	}
	if err := repo.Set(ctx, ns, raw); err != nil {
		return ErrTransientIO.WithCause(fmt.Errorf("set %s: %w", ns, err))
	}
	return nil
}

// IDSet is an insertion-ordered set of profile ids, stored as a JSON list.
type IDSet struct {
	mu    sync.RWMutex
	order []ProfileID
	index map[ProfileID]struct{}
}

// NewIDSet returns a set holding ids, duplicates dropped.
func NewIDSet(ids ...ProfileID) *IDSet {
	s := &IDSet{index: make(map[ProfileID]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *IDSet) add(id ProfileID) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Has reports whether id is in the set. A nil set is empty.
func (s *IDSet) Has(id ProfileID) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id ProfileID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(id)
}

// Remove deletes id and reports whether it was present.
func (s *IDSet) Remove(id ProfileID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of ids.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Slice returns the ids in insertion order.
func (s *IDSet) Slice() []ProfileID {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ProfileID(nil), s.order...)
}

func (s *IDSet) MarshalJSON() ([]byte, error) {
	ids := s.Slice()
	if ids == nil {
		ids = []ProfileID{}
	}
	return json.Marshal(ids)
}

func (s *IDSet) UnmarshalJSON(b []byte) error {
	var ids []ProfileID
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.index = make(map[ProfileID]struct{}, len(ids))
	for _, id := range ids {
		s.add(id)
	}
	return nil
}

// LoadIDSet reads a list namespace as a set.
func LoadIDSet(ctx context.Context, repo CacheRepo, ns Namespace) (*IDSet, error) {
	set, err := LoadNamespace(ctx, repo, ns, NewIDSet())
	if set == nil {
		set = NewIDSet()
	}
	return set, err
}

// Snapshot is the full cache state read at the start of a pass.
type Snapshot struct {
	Blocklist   *IDSet
	Chatted     *IDSet
	PhotoGender *GenderCache
	Identity    *IdentityMap
}

// LoadSnapshot reads every namespace a filter pass depends on.
func LoadSnapshot(ctx context.Context, repo CacheRepo) (*Snapshot, error) {
	blocklist, err := LoadIDSet(ctx, repo, NamespaceBlocklist)
	if err != nil {
		return nil, err
	}
	chatted, err := LoadIDSet(ctx, repo, NamespaceChatted)
	if err != nil {
		return nil, err
	}
	genders, err := LoadGenderCache(ctx, repo)
	if err != nil {
		return nil, err
	}
	identity, err := LoadIdentityMap(ctx, repo)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Blocklist:   blocklist,
		Chatted:     chatted,
		PhotoGender: genders,
		Identity:    identity,
	}, nil
}

// Excluded reports whether id is blocklisted or already chatted with.
func (s *Snapshot) Excluded(id ProfileID) bool {
	return s.Blocklist.Has(id) || s.Chatted.Has(id)
}
