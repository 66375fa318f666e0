package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
	"github.com/mednat/tandem-extras/internal/pkg/face"
)

// NewFaceClient creates the face/gender classifier client from config.
// A disabled classifier yields a nil client.
func NewFaceClient(c *conf.Data, logger log.Logger) (*face.Client, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data/classifier"))

	cc := c.Classifier
	if cc == nil || !cc.Enabled {
		helper.Info("face classifier disabled, photo signal will be unknown")
		return nil, func() {}, nil
	}

	cfg := face.DefaultConfig()
	if cc.BaseURL != "" {
		cfg.BaseURL = cc.BaseURL
	}
	if d := cc.Timeout.AsDuration(); d > 0 {
		cfg.Timeout = d
	}
	client := face.NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		helper.Warnf("face classifier not reachable yet: %v", err)
	} else {
		helper.Infof("face classifier reachable at %s", cfg.BaseURL)
	}

	return client, func() {}, nil
}

// photoClassifier adapts face.Client to biz.PhotoClassifier.
type photoClassifier struct {
	client *face.Client
	log    *log.Helper
}

// NewPhotoClassifier wraps client. A nil client always reports Unknown.
func NewPhotoClassifier(client *face.Client, logger log.Logger) biz.PhotoClassifier {
	return &photoClassifier{
		client: client,
		log:    log.NewHelper(log.With(logger, "module", "data/classifier")),
	}
}

func (c *photoClassifier) MaleProbability(ctx context.Context, photo *biz.Photo) (biz.Score, error) {
	if c.client == nil || photo == nil {
		return biz.Unknown, nil
	}
	pred, err := c.client.Classify(ctx, photo.Data)
	if err != nil {
		return biz.Unknown, biz.ErrClassifier.WithCause(err)
	}
	p, ok := pred.MaleProbability()
	if !ok {
		c.log.WithContext(ctx).Debugf("no face/gender result for %s", photo.URL)
		return biz.Unknown, nil
	}
	return biz.Known(p), nil
}
