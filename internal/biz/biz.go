package biz

import (
	"github.com/google/wire"
	"github.com/mednat/tandem-extras/internal/conf"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewFilterConfig,
	NewResolver,
	NewGenderEstimator,
	NewListingsHandler,
	NewProfileHandler,
	NewChatsHandler,
	NewOtherHandler,
	NewRouter,
	NewDiagnostics,
)

// NewFilterConfig builds the pipeline configuration, filling unset values
// with defaults.
func NewFilterConfig(c *conf.Filter) (FilterConfig, error) {
	cfg := DefaultFilterConfig()
	if c == nil {
		return cfg, nil
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if d := c.ElementTimeout.AsDuration(); d > 0 {
		cfg.ElementTimeout = d
	}
	cfg.MaxHashDistance = c.MaxHashDistance
	if f := c.Fusion; f != nil {
		cfg.Fusion = FusionPolicy{
			SingleHide:   f.SingleHide,
			JointHide:    f.JointHide,
			AgreeMin:     f.AgreeMin,
			AgreeMax:     f.AgreeMax,
			NameOnlyHide: f.NameOnlyHide,
			Margin:       f.Margin,
		}
	}
	if err := cfg.Fusion.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
