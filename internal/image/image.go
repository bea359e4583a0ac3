package image

import (
	"errors"
	"fmt"
	goimage "image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
)

const printVariantName = "print"

// Options configures how raw photos are turned into OCR variants.
type Options struct {
	// WorkDir receives every variant file.
	WorkDir string
	Filters FilterSet
	// Binarize Otsu-thresholds each filter variant.
	Binarize bool
	// Denoise adds the median/adaptive-threshold/opening variant.
	Denoise       bool
	OpeningKernel int
	// MinDimension upscales photos whose width or height is below it.
	MinDimension  int
	BlurThreshold float64
}

func DefaultOptions() Options {
	return Options{
		WorkDir:       filepath.Join("data", "images"),
		Filters:       DefaultFilters(),
		Binarize:      true,
		OpeningKernel: 1,
		MinDimension:  300,
		BlurThreshold: DefaultBlurThreshold,
	}
}

// Variant is one OCR-oriented rendering of a raw photo.
type Variant struct {
	Name string
	Path string
}

type ImageProcessor struct {
	opts Options
	log  zerolog.Logger
}

func NewImageProcessor(opts Options, log zerolog.Logger) *ImageProcessor {
	return &ImageProcessor{opts: opts, log: log}
}

func (ip *ImageProcessor) Options() Options {
	return ip.opts
}

// Normalize writes one variant per configured filter, plus the print variant
// when denoising is enabled. The source file is never modified. On failure
// no variant file is left behind.
func (ip *ImageProcessor) Normalize(path string) ([]Variant, error) {
	gray, err := ip.openGray(path)
	if err != nil {
		return []Variant{}, err
	}

	if err := os.MkdirAll(ip.opts.WorkDir, 0o755); err != nil {
		return []Variant{}, fmt.Errorf("creating work directory: %w", err)
	}

	base := gray
	if minDim := ip.opts.MinDimension; minDim > 0 {
		b := base.Bounds()
		if b.Dx() < minDim || b.Dy() < minDim {
			base = toGray(imaging.Resize(base, b.Dx()*2, b.Dy()*2, imaging.Lanczos))
		}
	}

	variants := make([]Variant, 0, len(ip.opts.Filters)+1)
	for _, f := range ip.opts.Filters {
		out := toGray(f.apply(base))
		if ip.opts.Binarize {
			out = otsu(out)
		}
		v, err := ip.save(path, f.Name(), out)
		if err != nil {
			ip.Cleanup(variantPaths(variants)...)
			return []Variant{}, err
		}
		variants = append(variants, v)
	}

	if ip.opts.Denoise {
		v, err := ip.save(path, printVariantName, printVariant(base, ip.opts.OpeningKernel))
		if err != nil {
			ip.Cleanup(variantPaths(variants)...)
			return []Variant{}, err
		}
		variants = append(variants, v)
	}

	ip.log.Debug().Str("file", path).Int("variants", len(variants)).Msg("image normalized")
	return variants, nil
}

// Clarity runs the Laplacian blur check on the image at path.
func (ip *ImageProcessor) Clarity(path string) (Clarity, error) {
	gray, err := ip.openGray(path)
	if err != nil {
		return Clarity{}, err
	}
	variance := LaplacianVariance(gray)
	c := Clarity{Variance: variance, Clear: variance >= ip.opts.BlurThreshold}
	ip.log.Debug().Str("file", path).Float64("variance", variance).Bool("clear", c.Clear).Msg("clarity check")
	return c, nil
}

// Sharpest returns the variant with the highest Laplacian variance.
func (ip *ImageProcessor) Sharpest(variants []Variant) (Variant, error) {
	if len(variants) == 0 {
		return Variant{}, errors.New("no variants to choose from")
	}
	best, bestVar := variants[0], -1.0
	for _, v := range variants {
		c, err := ip.Clarity(v.Path)
		if err != nil {
			return Variant{}, err
		}
		if c.Variance > bestVar {
			best, bestVar = v, c.Variance
		}
	}
	return best, nil
}

// Cleanup removes the given files. Missing files and failures are logged,
// never returned.
func (ip *ImageProcessor) Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				ip.log.Warn().Str("file", p).Msg("image file not found during cleanup")
				continue
			}
			ip.log.Error().Err(err).Str("file", p).Msg("failed to clean up image")
			continue
		}
		ip.log.Debug().Str("file", p).Msg("image cleaned up")
	}
}

func (ip *ImageProcessor) openGray(path string) (*goimage.Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return toGray(imaging.Grayscale(img)), nil
}

func (ip *ImageProcessor) save(rawPath, name string, img goimage.Image) (Variant, error) {
	stem := strings.TrimSuffix(filepath.Base(rawPath), filepath.Ext(rawPath))
	out := filepath.Join(ip.opts.WorkDir, stem+"_"+name+".png")
	if err := imaging.Save(img, out); err != nil {
		return Variant{}, fmt.Errorf("saving variant %s: %w", out, err)
	}
	return Variant{Name: name, Path: out}, nil
}

func variantPaths(variants []Variant) []string {
	paths := make([]string, len(variants))
	for i, v := range variants {
		paths[i] = v.Path
	}
	return paths
}
