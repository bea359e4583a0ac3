package image

import (
	"fmt"
	goimage "image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Operation names an enhancement applied to the grayscale image.
type Operation string

const (
	OpContrast   Operation = "contrast"
	OpSharpen    Operation = "sharpen"
	OpEnhance    Operation = "enhance"
	OpGamma      Operation = "gamma"
	OpBrightness Operation = "brightness"
)

// Filter is one (operation, factor) pair. Each filter of a FilterSet yields
// its own variant.
type Filter struct {
	Op     Operation
	Factor float64
}

type FilterSet []Filter

// DefaultFilters doubles contrast and applies a mild sharpen.
func DefaultFilters() FilterSet {
	return FilterSet{{Op: OpEnhance, Factor: 2}}
}

// Name is used as the variant file suffix, e.g. "contrast1.5".
func (f Filter) Name() string {
	return string(f.Op) + strconv.FormatFloat(f.Factor, 'f', -1, 64)
}

func (f Filter) String() string {
	return string(f.Op) + ":" + strconv.FormatFloat(f.Factor, 'f', -1, 64)
}

// ParseFilters parses "op:factor" entries separated by commas.
func ParseFilters(s string) (FilterSet, error) {
	var set FilterSet
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		op, factorStr, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected op:factor", entry)
		}
		factor, err := strconv.ParseFloat(strings.TrimSpace(factorStr), 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", entry, err)
		}
		f := Filter{Op: Operation(strings.ToLower(strings.TrimSpace(op))), Factor: factor}
		if err := f.validate(); err != nil {
			return nil, err
		}
		set = append(set, f)
	}
	return set, nil
}

func (s FilterSet) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

func (f Filter) validate() error {
	switch f.Op {
	case OpContrast, OpEnhance, OpBrightness:
		if f.Factor < 0 {
			return fmt.Errorf("filter %s: factor must not be negative", f)
		}
	case OpSharpen, OpGamma:
		if f.Factor <= 0 {
			return fmt.Errorf("filter %s: factor must be positive", f)
		}
	default:
		return fmt.Errorf("unknown filter operation %q", f.Op)
	}
	return nil
}

func (f Filter) apply(img goimage.Image) goimage.Image {
	switch f.Op {
	case OpContrast:
		return imaging.AdjustContrast(img, contrastPercentage(f.Factor))
	case OpSharpen:
		return imaging.Sharpen(img, f.Factor)
	case OpEnhance:
		return imaging.Sharpen(imaging.AdjustContrast(img, contrastPercentage(f.Factor)), 1)
	case OpGamma:
		return imaging.AdjustGamma(img, f.Factor)
	case OpBrightness:
		return imaging.AdjustBrightness(img, clampPercentage((f.Factor-1)*100))
	}
	return img
}

// contrastPercentage maps an enhancement factor (1 keeps the image, 2
// doubles contrast) onto imaging's percentage scale.
func contrastPercentage(factor float64) float64 {
	if factor >= 1 {
		return clampPercentage((1 - 1/factor) * 100)
	}
	return clampPercentage((factor - 1) * 100)
}

func clampPercentage(p float64) float64 {
	if p > 100 {
		return 100
	}
	if p < -100 {
		return -100
	}
	return p
}
