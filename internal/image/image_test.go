package image

import (
	"bytes"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
)

func writePNG(t *testing.T, path string, img goimage.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
}

func checkerboard(size, cell int) *goimage.Gray {
	img := goimage.NewGray(goimage.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func flat(size int, v uint8) *goimage.Gray {
	img := goimage.NewGray(goimage.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func newTestProcessor(t *testing.T, mutate func(*Options)) *ImageProcessor {
	opts := DefaultOptions()
	opts.WorkDir = filepath.Join(t.TempDir(), "work")
	if mutate != nil {
		mutate(&opts)
	}
	return NewImageProcessor(opts, logger.Nop())
}

func TestClarity(t *testing.T) {
	testCases := []struct {
		name  string
		img   goimage.Image
		clear bool
	}{
		{name: "checkerboard", img: checkerboard(64, 4), clear: true},
		{name: "flat", img: flat(64, 128), clear: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			ip := newTestProcessor(t, nil)
			path := filepath.Join(t.TempDir(), tc.name+".png")
			writePNG(t, path, tc.img)

			// Act
			first, err1 := ip.Clarity(path)
			second, err2 := ip.Clarity(path)

			// Assert
			if err1 != nil || err2 != nil {
				t.Fatalf("clarity failed: %v / %v", err1, err2)
			}
			if first.Clear != tc.clear {
				t.Errorf("expected clear=%v, got %v (variance %v)", tc.clear, first.Clear, first.Variance)
			}
			if first != second {
				t.Errorf("clarity not deterministic: %+v vs %+v", first, second)
			}
		})
	}
}

func TestNormalize_FanOut(t *testing.T) {
	// Arrange
	ip := newTestProcessor(t, func(o *Options) {
		o.Filters = FilterSet{{Op: OpContrast, Factor: 2}, {Op: OpSharpen, Factor: 1}}
		o.Denoise = true
	})
	raw := filepath.Join(t.TempDir(), "1_42_y.png")
	writePNG(t, raw, checkerboard(64, 8))
	before, _ := os.ReadFile(raw)

	// Act
	variants, err := ip.Normalize(raw)

	// Assert
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(variants))
	}
	seen := map[string]bool{}
	for _, v := range variants {
		if seen[v.Path] {
			t.Errorf("duplicate variant path %s", v.Path)
		}
		seen[v.Path] = true
		if filepath.Dir(v.Path) != ip.Options().WorkDir {
			t.Errorf("variant %s outside work dir", v.Path)
		}
		if _, err := os.Stat(v.Path); err != nil {
			t.Errorf("variant %s missing: %v", v.Path, err)
		}
	}
	after, _ := os.ReadFile(raw)
	if !bytes.Equal(before, after) {
		t.Errorf("source image was modified")
	}
}

func TestNormalize_Binarized(t *testing.T) {
	ip := newTestProcessor(t, nil)
	raw := filepath.Join(t.TempDir(), "raw.png")
	writePNG(t, raw, checkerboard(64, 8))

	variants, err := ip.Normalize(raw)
	if err != nil || len(variants) != 1 {
		t.Fatalf("expected one variant, got %d (%v)", len(variants), err)
	}

	f, _ := os.Open(variants[0].Path)
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding variant: %v", err)
	}
	gray := toGray(img)
	for _, p := range gray.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("expected binary pixels, found %d", p)
		}
	}
}

func TestNormalize_DecodeError(t *testing.T) {
	ip := newTestProcessor(t, nil)
	raw := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(raw, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	variants, err := ip.Normalize(raw)

	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
	if len(variants) != 0 {
		t.Errorf("expected no variants, got %d", len(variants))
	}
	entries, _ := os.ReadDir(ip.Options().WorkDir)
	if len(entries) != 0 {
		t.Errorf("expected empty work dir, found %d files", len(entries))
	}
}

func TestSharpest(t *testing.T) {
	ip := newTestProcessor(t, nil)
	dir := t.TempDir()
	soft := Variant{Name: "soft", Path: filepath.Join(dir, "soft.png")}
	hard := Variant{Name: "hard", Path: filepath.Join(dir, "hard.png")}
	writePNG(t, soft.Path, flat(32, 90))
	writePNG(t, hard.Path, checkerboard(32, 2))

	best, err := ip.Sharpest([]Variant{soft, hard})

	if err != nil {
		t.Fatalf("sharpest failed: %v", err)
	}
	if best != hard {
		t.Errorf("expected %s, got %s", hard.Name, best.Name)
	}
}

func TestCleanup_MissingFileIsNotFatal(t *testing.T) {
	ip := newTestProcessor(t, nil)
	path := filepath.Join(t.TempDir(), "gone.png")
	writePNG(t, path, flat(4, 0))

	ip.Cleanup(path, path, "")

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file removed, stat err=%v", err)
	}
}

func TestParseFilters(t *testing.T) {
	set, err := ParseFilters("enhance:2, sharpen:1.5,gamma:0.8")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(set) != 3 || set[1].Op != OpSharpen || set[1].Factor != 1.5 {
		t.Errorf("unexpected filter set %v", set)
	}
	if set.String() != "enhance:2,sharpen:1.5,gamma:0.8" {
		t.Errorf("unexpected string form %q", set.String())
	}

	for _, bad := range []string{"blur:2", "contrast", "sharpen:0", "contrast:x"} {
		if _, err := ParseFilters(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
