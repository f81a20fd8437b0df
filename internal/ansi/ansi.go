// Package ansi renders images as half-block terminal art.
package ansi

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
)

// Render converts an image to width x height character cells. Each cell is
// an upper half block with the top two pixels as foreground and the bottom
// two as background. Without trueColor only the block characters are
// written.
func Render(img image.Image, width, height int, trueColor bool) string {
	// Two pixels per cell in each direction
	resized := resize.Resize(uint(width*2), uint(height*2), img, resize.Lanczos3)

	var buffer strings.Builder
	for y := 0; y < height*2; y += 2 {
		for x := 0; x < width*2; x += 2 {
			col1, _ := colorful.MakeColor(colorAt(resized, x, y))
			col2, _ := colorful.MakeColor(colorAt(resized, x+1, y))
			col3, _ := colorful.MakeColor(colorAt(resized, x, y+1))
			col4, _ := colorful.MakeColor(colorAt(resized, x+1, y+1))

			fg := toColor(averageColor(col1, col2))
			bg := toColor(averageColor(col3, col4))
			buffer.WriteString(colorString('▀', fg, bg, trueColor))
		}
		buffer.WriteString("\n")
	}
	return buffer.String()
}

// FitCells picks a cell grid no wider than maxWidth that keeps the image's
// aspect ratio. Terminal cells are about twice as tall as wide, which the
// half block rendering already accounts for.
func FitCells(img image.Image, maxWidth int) (int, int) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || maxWidth <= 0 {
		return 0, 0
	}
	width := min(maxWidth, b.Dx())
	height := max(width*b.Dy()/b.Dx(), 1)
	return width, height
}

// colorAt returns the color at x, y or black outside the image.
func colorAt(img image.Image, x, y int) color.Color {
	bounds := img.Bounds()
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		return img.At(x, y)
	}
	return color.RGBA{0, 0, 0, 255}
}

func averageColor(colors ...colorful.Color) colorful.Color {
	var r, g, b float64
	for _, c := range colors {
		r += c.R
		g += c.G
		b += c.B
	}
	count := float64(len(colors))
	return colorful.Color{R: r / count, G: g / count, B: b / count}
}

func toColor(c colorful.Color) color.Color {
	return color.RGBA{R: uint8(c.R * 255), G: uint8(c.G * 255), B: uint8(c.B * 255), A: 255}
}

func colorString(char rune, fg, bg color.Color, trueColor bool) string {
	if !trueColor {
		return string(char)
	}
	r1, g1, b1, _ := fg.RGBA()
	r2, g2, b2, _ := bg.RGBA()
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%c\x1b[0m",
		r1>>8, g1>>8, b1>>8, r2>>8, g2>>8, b2>>8, char)
}

// Strip removes ANSI escape sequences from s.
func Strip(s string) string {
	var result strings.Builder
	inEscape := false
	for _, c := range s {
		if inEscape {
			if c == 'm' {
				inEscape = false
			}
		} else if c == '\033' {
			inEscape = true
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// visibleWidth counts the runes left after stripping escapes.
func visibleWidth(s string) int {
	return len([]rune(Strip(s)))
}

// Wrap breaks text into lines of at most width characters. Widths under 10
// fall back to 40.
func Wrap(text string, width int) []string {
	if width < 10 {
		width = 40
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var result []string
	current := ""
	for _, word := range words {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= width:
			current += " " + word
		default:
			result = append(result, current)
			current = word
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

// SideBySide prints art with the info lines to its right.
func SideBySide(w io.Writer, art string, info []string) {
	artLines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	artWidth := 0
	for _, line := range artLines {
		artWidth = max(artWidth, visibleWidth(line))
	}
	infoCol := artWidth + 4

	fmt.Fprintln(w)
	for i := 0; i < max(len(artLines), len(info)); i++ {
		fmt.Fprint(w, "  ")
		if i < len(artLines) {
			fmt.Fprint(w, artLines[i])
			fmt.Fprint(w, strings.Repeat(" ", infoCol-visibleWidth(artLines[i])))
		} else {
			fmt.Fprint(w, strings.Repeat(" ", infoCol))
		}
		if i < len(info) {
			fmt.Fprint(w, info[i])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// Cache keeps rendered art on disk keyed by a caller supplied string.
type Cache struct {
	Dir string
}

func (c Cache) path(key string) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%x.ansi", md5.Sum([]byte(key))))
}

// Get returns the cached art for key.
func (c Cache) Get(key string) (string, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put stores art under key.
func (c Cache) Put(key, art string) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("create ansi cache directory: %w", err)
	}
	return os.WriteFile(c.path(key), []byte(art), 0644)
}
