package data

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"

	_ "golang.org/x/image/webp"
)

const (
	defaultImageTimeout   = 15 * time.Second
	defaultImageCacheSize = 512
	defaultImageMaxBytes  = 10 << 20
)

// ImageLoader fetches and decodes profile photos, keeping recent ones in an LRU.
type ImageLoader struct {
	client   *http.Client
	cache    *lru.Cache[string, *biz.Photo]
	maxBytes int64
	log      *log.Helper
}

// NewImageLoader creates an ImageLoader from c.Images, using defaults for unset values.
func NewImageLoader(c *conf.Data, logger log.Logger) (biz.ImageLoader, error) {
	var (
		timeout   = defaultImageTimeout
		cacheSize = defaultImageCacheSize
		maxBytes  = int64(defaultImageMaxBytes)
	)
	if img := c.Images; img != nil {
		if d := img.Timeout.AsDuration(); d > 0 {
			timeout = d
		}
		if img.CacheSize > 0 {
			cacheSize = img.CacheSize
		}
		if img.MaxBytes > 0 {
			maxBytes = img.MaxBytes
		}
	}
	return newImageLoader(&http.Client{Timeout: timeout}, cacheSize, maxBytes, logger)
}

func newImageLoader(client *http.Client, cacheSize int, maxBytes int64, logger log.Logger) (*ImageLoader, error) {
	cache, err := lru.New[string, *biz.Photo](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ImageLoader{
		client:   client,
		cache:    cache,
		maxBytes: maxBytes,
		log:      log.NewHelper(log.With(logger, "module", "data/images")),
	}, nil
}

// Load returns the decoded photo at url.
func (l *ImageLoader) Load(ctx context.Context, url string) (*biz.Photo, error) {
	if photo, ok := l.cache.Get(url); ok {
		return photo, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, biz.ErrTransientIO.WithCause(fmt.Errorf("build request for %s: %w", url, err))
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, biz.ErrTransientIO.WithCause(fmt.Errorf("fetch %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, biz.ErrTransientIO.WithCause(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, biz.ErrTransientIO.WithCause(fmt.Errorf("read %s: %w", url, err))
	}
	if int64(len(data)) > l.maxBytes {
		return nil, biz.ErrTransientIO.WithCause(fmt.Errorf("image %s exceeds %d bytes", url, l.maxBytes))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, biz.ErrTransientIO.WithCause(fmt.Errorf("decode %s: %w", url, err))
	}
	l.log.WithContext(ctx).Debugf("loaded %s image %s (%d bytes)", format, url, len(data))

	photo := &biz.Photo{URL: url, Image: img, Data: data}
	l.cache.Add(url, photo)
	return photo, nil
}
