package hash

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
)

// ErrInvalidHex is returned when a hash string is not 16 hex digits.
var ErrInvalidHex = errors.New("invalid perceptual hash hex")

// ErrUnknownHashType is returned by ParseHashType for unsupported names.
var ErrUnknownHashType = errors.New("unknown perceptual hash type")

// HashType represents the type of perceptual hash.
type HashType int

const (
	// PHash uses DCT-based perceptual hash (most accurate).
	PHash HashType = iota
	// AHash uses average hash (fastest).
	AHash
	// DHash uses difference hash (good balance).
	DHash
)

// ImageHash represents a computed image hash.
type ImageHash struct {
	Hash     uint64
	HashType HashType
	Width    int
	Height   int
}

// PerceptualHasher computes similarity-tolerant hashes of decoded images.
type PerceptualHasher struct {
	hashType HashType
}

// NewPerceptualHasher creates a new PerceptualHasher producing hashes of the given type.
func NewPerceptualHasher(hashType HashType) *PerceptualHasher {
	return &PerceptualHasher{hashType: hashType}
}

// Compute hashes img with the hasher's configured hash type.
func (ph *PerceptualHasher) Compute(img image.Image) (*ImageHash, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var (
		h   *goimagehash.ImageHash
		err error
	)
	switch ph.hashType {
	case AHash:
		h, err = goimagehash.AverageHash(img)
	case DHash:
		h, err = goimagehash.DifferenceHash(img)
	default:
		h, err = goimagehash.PerceptionHash(img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s: %w", hashTypeName(ph.hashType), err)
	}
	return &ImageHash{
		Hash:     h.GetHash(),
		HashType: ph.hashType,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}, nil
}

// HammingDistance calculates the Hamming distance between two hashes.
// Returns the number of different bits (0 = identical images).
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count
}

// String returns the fixed-width hex representation of the hash.
func (h *ImageHash) String() string {
	return Hex(h.Hash)
}

// Hex formats a 64-bit hash as 16 lowercase hex digits.
func Hex(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

// ParseHex parses a 16-digit hex hash produced by Hex.
func ParseHex(s string) (uint64, error) {
	if len(s) != 16 {
		return 0, ErrInvalidHex
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, ErrInvalidHex
	}
	return v, nil
}

// ParseHashType maps "phash", "ahash" or "dhash" to a HashType. An empty
// name selects PHash.
func ParseHashType(name string) (HashType, error) {
	switch strings.ToLower(name) {
	case "", "phash":
		return PHash, nil
	case "ahash":
		return AHash, nil
	case "dhash":
		return DHash, nil
	default:
		return PHash, fmt.Errorf("%w: %q", ErrUnknownHashType, name)
	}
}

func hashTypeName(t HashType) string {
	switch t {
	case PHash:
		return "pHash"
	case AHash:
		return "aHash"
	case DHash:
		return "dHash"
	default:
		return "unknown"
	}
}
