// Package overlay renders aligned annotations on top of the document image
// so that the result can be reviewed visually.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/kvmap/internal/template"
)

// Colors assigns an outline colour to each annotation type.
type Colors struct {
	Key   color.Color
	Value color.Color
	Etc   color.Color
}

// DefaultColors draws keys red, values blue and etc labels green.
func DefaultColors() Colors {
	return Colors{
		Key:   color.RGBA{R: 220, G: 30, B: 30, A: 255},
		Value: color.RGBA{R: 30, G: 60, B: 220, A: 255},
		Etc:   color.RGBA{R: 20, G: 160, B: 60, A: 255},
	}
}

// ColorsFromHex builds Colors from "#rrggbb" strings, keeping the default
// for any that are empty or malformed.
func ColorsFromHex(key, value, etc string) Colors {
	c := DefaultColors()
	if col := ParseHexColor(key); col != nil {
		c.Key = col
	}
	if col := ParseHexColor(value); col != nil {
		c.Value = col
	}
	if col := ParseHexColor(etc); col != nil {
		c.Etc = col
	}
	return c
}

func (c Colors) forType(t template.Type) color.Color {
	switch t {
	case template.TypeKey:
		return c.Key
	case template.TypeValue:
		return c.Value
	default:
		return c.Etc
	}
}

// Render draws the annotation boxes over a copy of img.
func Render(img image.Image, anns []template.Annotation, colors Colors, thickness int) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	for _, a := range anns {
		if a.BBox == nil {
			continue
		}
		// Clone rebases the image to the origin.
		rect := a.BBox.ToRect(dst.Bounds())
		DrawRect(dst, rect, colors.forType(a.Type), thickness)
	}
	return dst
}

// RenderFile loads the document image, draws the annotations and writes a
// PNG to outPath.
func RenderFile(imagePath, outPath string, anns []template.Annotation, colors Colors) error {
	img, err := LoadImage(imagePath)
	if err != nil {
		return err
	}
	dst := Render(img, anns, colors, 2)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create overlay directory: %w", err)
	}
	if err := imaging.Save(dst, outPath); err != nil {
		return &ImageError{Operation: "save", Path: outPath, Err: err}
	}
	return nil
}

// ParseHexColor parses "#rrggbb" or "rrggbb"; it returns nil when invalid.
func ParseHexColor(s string) color.Color {
	if s == "" {
		return nil
	}
	if s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return nil
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return nil
	}
	return color.RGBA{R: uint8(rv), G: uint8(gv), B: uint8(bv), A: 255} //nolint:gosec // G115: values are two hex digits
}
