package biz

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNamespace_MissReturnsDefault(t *testing.T) {
	repo := newMemRepo()
	got, err := LoadNamespace(context.Background(), repo, NamespaceIDToHash, map[ProfileID]PhotoHash{"x": "y"})
	require.NoError(t, err)
	assert.Equal(t, map[ProfileID]PhotoHash{"x": "y"}, got)
}

func TestLoadNamespace_Errors(t *testing.T) {
	ctx := context.Background()

	repo := newMemRepo()
	repo.put(NamespaceIDToHash, "{not json")
	_, err := LoadNamespace(ctx, repo, NamespaceIDToHash, map[ProfileID]PhotoHash{})
	assert.True(t, errors.Is(err, ErrDataIntegrity), "got %v", err)

	repo = newMemRepo()
	repo.failGet = errBoom
	_, err = LoadNamespace(ctx, repo, NamespaceIDToHash, map[ProfileID]PhotoHash{})
	assert.True(t, errors.Is(err, ErrTransientIO), "got %v", err)
	assert.ErrorIs(t, err, errBoom)
}

func TestSaveNamespace_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	require.NoError(t, SaveNamespace(ctx, repo, NamespaceHashToID, map[PhotoHash]ProfileID{"abc": "1"}))
	assert.JSONEq(t, `{"abc":"1"}`, repo.raw(NamespaceHashToID))

	repo.failSet = errBoom
	err := SaveNamespace(ctx, repo, NamespaceHashToID, map[PhotoHash]ProfileID{})
	assert.True(t, errors.Is(err, ErrTransientIO))
}

func TestIDSet(t *testing.T) {
	s := NewIDSet("b", "a", "b")
	assert.Equal(t, []ProfileID{"b", "a"}, s.Slice())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Add("c"))
	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []ProfileID{"a", "c"}, s.Slice())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","c"]`, string(raw))

	raw, err = json.Marshal(NewIDSet())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))

	var nilSet *IDSet
	assert.False(t, nilSet.Has("a"))
	assert.Zero(t, nilSet.Len())
}

func TestLoadIDSet(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	set, err := LoadIDSet(ctx, repo, NamespaceBlocklist)
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	repo.put(NamespaceBlocklist, `["42","7","42"]`)
	set, err = LoadIDSet(ctx, repo, NamespaceBlocklist)
	require.NoError(t, err)
	assert.Equal(t, []ProfileID{"42", "7"}, set.Slice())

	repo.put(NamespaceBlocklist, `null`)
	set, err = LoadIDSet(ctx, repo, NamespaceBlocklist)
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Zero(t, set.Len())
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.put(NamespaceBlocklist, `["42"]`)
	repo.put(NamespaceChatted, `["9"]`)
	repo.put(NamespacePhotoGender, `{"1":0.25,"2":null}`)
	repo.put(NamespaceIDToHash, `{"1":"abc"}`)
	repo.put(NamespaceHashToID, `{"abc":"1"}`)

	snap, err := LoadSnapshot(ctx, repo)
	require.NoError(t, err)

	assert.True(t, snap.Excluded("42"))
	assert.True(t, snap.Excluded("9"))
	assert.False(t, snap.Excluded("1"))

	s, state := snap.PhotoGender.Get("1")
	assert.Equal(t, LookupKnown, state)
	assert.Equal(t, 0.25, s.P)
	_, state = snap.PhotoGender.Get("2")
	assert.Equal(t, LookupUnknown, state)
	_, state = snap.PhotoGender.Get("3")
	assert.Equal(t, LookupAbsent, state)

	h, ok := snap.Identity.HashOf("1")
	assert.True(t, ok)
	assert.Equal(t, PhotoHash("abc"), h)
}
