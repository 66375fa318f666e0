package data

import (
	"image"

	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
	"github.com/mednat/tandem-extras/internal/pkg/hash"
)

// photoHasher adapts hash.PerceptualHasher to biz.PhotoHasher.
type photoHasher struct {
	ph *hash.PerceptualHasher
}

// NewPhotoHasher returns the perceptual hasher named by c.Hasher, DCT pHash
// by default.
func NewPhotoHasher(c *conf.Data) (biz.PhotoHasher, error) {
	var name string
	if c != nil && c.Hasher != nil {
		name = c.Hasher.Type
	}
	t, err := hash.ParseHashType(name)
	if err != nil {
		return nil, err
	}
	return &photoHasher{ph: hash.NewPerceptualHasher(t)}, nil
}

func (h *photoHasher) Hash(img image.Image) (biz.PhotoHash, error) {
	ih, err := h.ph.Compute(img)
	if err != nil {
		return "", err
	}
	return biz.PhotoHash(ih.String()), nil
}
