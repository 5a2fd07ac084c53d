package qr

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

type ImageFormat int

const (
	// FormatPNG renders a raster PNG image.
	FormatPNG ImageFormat = iota
	// FormatSVG renders a vector SVG document.
	FormatSVG
	// FormatDataURL renders a PNG embedded in a data: URL.
	FormatDataURL
)

func (f ImageFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatSVG:
		return "svg"
	case FormatDataURL:
		return "data-url"
	}
	return "Unknown"
}

// Image is a rendered verification code.
type Image struct {
	Format ImageFormat
	Data   []byte
	Width  int
}

// Renderer turns a verification link into a scannable image.
type Renderer interface {
	Render(content string, format ImageFormat, width int) (Image, error)
}

// QRRenderer renders QR codes with go-qrcode, medium error correction.
type QRRenderer struct {
	level qrcode.RecoveryLevel
}

func NewRenderer() *QRRenderer {
	return &QRRenderer{level: qrcode.Medium}
}

func (r *QRRenderer) Render(content string, format ImageFormat, width int) (Image, error) {
	if width <= 0 {
		width = 300
	}

	switch format {
	case FormatPNG:
		png, err := qrcode.Encode(content, r.level, width)
		if err != nil {
			return Image{}, fmt.Errorf("encode QR png: %w", err)
		}
		return Image{Format: FormatPNG, Data: png, Width: width}, nil

	case FormatDataURL:
		png, err := qrcode.Encode(content, r.level, width)
		if err != nil {
			return Image{}, fmt.Errorf("encode QR png: %w", err)
		}
		data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		return Image{Format: FormatDataURL, Data: []byte(data), Width: width}, nil

	case FormatSVG:
		svg, err := r.renderSVG(content, width)
		if err != nil {
			return Image{}, err
		}
		return Image{Format: FormatSVG, Data: svg, Width: width}, nil

	default:
		return Image{}, fmt.Errorf("unsupported image format: %v", format)
	}
}

// renderSVG builds a minimal SVG from the QR module bitmap, one rect per
// dark module on a white background.
func (r *QRRenderer) renderSVG(content string, width int) ([]byte, error) {
	q, err := qrcode.New(content, r.level)
	if err != nil {
		return nil, fmt.Errorf("encode QR: %w", err)
	}

	bitmap := q.Bitmap()
	n := len(bitmap)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		width, width, n, n)
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="#ffffff"/>`, n, n)

	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="1" height="1" fill="#000000"/>`, x, y)
			}
		}
	}
	sb.WriteString(`</svg>`)

	return []byte(sb.String()), nil
}
