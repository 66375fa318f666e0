package biz

import (
	"fmt"
	"math"
	"strconv"
)

// Signal names the source of a decision.
type Signal int

const (
	SignalNone Signal = iota
	SignalName
	SignalPhoto
	SignalBlend
	SignalExcluded
)

func (s Signal) String() string {
	switch s {
	case SignalName:
		return "name"
	case SignalPhoto:
		return "photo"
	case SignalBlend:
		return "blend"
	case SignalExcluded:
		return "excluded"
	default:
		return "none"
	}
}

// Tint colours by signal, as RGB triples.
var tintRGB = map[Signal][3]int{
	SignalName:  {255, 119, 149},
	SignalPhoto: {167, 120, 255},
	SignalBlend: {250, 128, 250},
}

// RevealBackground marks hidden cards while they are temporarily revealed.
const RevealBackground = "rgba(172, 146, 87, 0.65)"

// FusionPolicy combines a name score and a photo score into a decision.
type FusionPolicy struct {
	// SingleHide hides when only one signal is known and exceeds it.
	SingleHide float64
	// JointHide hides when both signals exceed it.
	JointHide float64
	// AgreeMin and AgreeMax hide when min > AgreeMin and max > AgreeMax.
	AgreeMin float64
	AgreeMax float64
	// NameOnlyHide hides on a confident name regardless of the photo.
	NameOnlyHide float64
	// Margin bounds how far the photo signal may pull the blend from the name.
	Margin float64
}

// DefaultFusionPolicy returns the stock thresholds.
func DefaultFusionPolicy() FusionPolicy {
	return FusionPolicy{
		SingleHide:   0.9,
		JointHide:    0.7,
		AgreeMin:     0.5,
		AgreeMax:     0.8,
		NameOnlyHide: 0.95,
		Margin:       0.3,
	}
}

// Validate checks that every threshold is a probability.
func (p FusionPolicy) Validate() error {
	for name, v := range map[string]float64{
		"single_hide":    p.SingleHide,
		"joint_hide":     p.JointHide,
		"agree_min":      p.AgreeMin,
		"agree_max":      p.AgreeMax,
		"name_only_hide": p.NameOnlyHide,
		"margin":         p.Margin,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("fusion %s = %v outside [0,1]", name, v)
		}
	}
	return nil
}

// Decision is the visibility outcome for one card.
type Decision struct {
	Hide bool
	// Probability is the effective male probability driving a tint.
	Probability float64
	Source      Signal
}

// Excluded is the decision for blocklisted or chatted profiles.
var Excluded = Decision{Hide: true, Source: SignalExcluded}

// Changed reports whether the decision alters the card.
func (d Decision) Changed() bool {
	return d.Hide || d.Source != SignalNone
}

// Severity orders decisions: hidden above any tint, stronger tints above
// weaker ones. It never decreases when either input score increases.
func (d Decision) Severity() float64 {
	switch {
	case d.Hide:
		return 2
	case d.Source == SignalNone:
		return 0
	default:
		return d.Probability
	}
}

// Presentation is what the page applies to a card.
type Presentation struct {
	Hidden     bool   `json:"hidden"`
	Background string `json:"background,omitempty"`
}

// Presentation renders the decision. Tint alpha is 1 - p.
func (d Decision) Presentation() Presentation {
	if d.Hide {
		return Presentation{Hidden: true}
	}
	rgb, ok := tintRGB[d.Source]
	if !ok {
		return Presentation{}
	}
	alpha := 1 - math.Max(d.Probability, 0.01)
	return Presentation{
		Background: fmt.Sprintf("rgba(%d, %d, %d, %s)", rgb[0], rgb[1], rgb[2], strconv.FormatFloat(alpha, 'f', 3, 64)),
	}
}

// Fuse decides visibility from the name and photo scores.
func (p FusionPolicy) Fuse(name, photo Score) Decision {
	switch {
	case !name.Known && !photo.Known:
		return Decision{}
	case !photo.Known:
		return p.single(name.P, SignalName)
	case !name.Known:
		return p.single(photo.P, SignalPhoto)
	}

	n, f := name.P, photo.P
	lo, hi := math.Min(n, f), math.Max(n, f)
	if (n > p.JointHide && f > p.JointHide) ||
		(lo > p.AgreeMin && hi > p.AgreeMax) ||
		n > p.NameOnlyHide {
		return Decision{Hide: true, Probability: p.blend(n, f), Source: SignalBlend}
	}
	return Decision{Probability: p.blend(n, f), Source: SignalBlend}
}

func (p FusionPolicy) single(v float64, src Signal) Decision {
	return Decision{Hide: v > p.SingleHide, Probability: v, Source: src}
}

// blend averages the two signals after clamping the photo to within Margin
// of the name.
func (p FusionPolicy) blend(n, f float64) float64 {
	f = math.Max(n-p.Margin, math.Min(f, n+p.Margin))
	return (n + f) / 2
}
