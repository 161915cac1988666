// Package wordcloud lays out token frequencies as a word-cloud image.
//
// Words are drawn with a bitmap face, scaled by weight, and placed along an
// Archimedean spiral from the canvas centre. Layout is deterministic: the
// same frequencies always produce the same image.
package wordcloud

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Defaults for Options zero values.
const (
	DefaultWidth    = 800
	DefaultHeight   = 600
	DefaultMaxWords = 150
	DefaultMaxScale = 6
)

const (
	spiralStep   = 0.15
	spiralGrowth = 1.5
	wordPadding  = 2
)

var (
	// ErrGlyphCoverage is returned when no token can be drawn with the face.
	ErrGlyphCoverage = errors.New("wordcloud: no token covered by the font")
	// ErrNoWords is returned for an empty frequency map.
	ErrNoWords = errors.New("wordcloud: no words")
)

// CoverageError lists tokens dropped because the face lacks their glyphs.
type CoverageError struct {
	Dropped []string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("wordcloud: font has no glyphs for %d token(s)", len(e.Dropped))
}

func (e *CoverageError) Unwrap() error {
	return ErrGlyphCoverage
}

var defaultPalette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

// Options configures an Engine.
type Options struct {
	Width    int
	Height   int
	MaxWords int
	MaxScale int // largest glyph magnification
	Logger   *slog.Logger
}

// Engine renders word clouds as PNG.
type Engine struct {
	width    int
	height   int
	maxWords int
	maxScale int
	face     *basicfont.Face
	palette  []color.RGBA
	logger   *slog.Logger
}

// New creates an Engine. Zero option values select the defaults.
func New(opts Options) *Engine {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	if opts.MaxScale <= 0 {
		opts.MaxScale = DefaultMaxScale
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		width:    opts.Width,
		height:   opts.Height,
		maxWords: opts.MaxWords,
		maxScale: opts.MaxScale,
		face:     basicfont.Face7x13,
		palette:  defaultPalette,
		logger:   logger.With("component", "wordcloud"),
	}
}

// Extension is the file extension of rendered clouds.
func (e *Engine) Extension() string {
	return "png"
}

type word struct {
	text   string
	weight int64
}

// Render lays out freqs and writes the image to w. Tokens the face cannot
// draw are skipped; if none remain the error is a *CoverageError.
func (e *Engine) Render(w io.Writer, freqs map[string]int64) error {
	if len(freqs) == 0 {
		return ErrNoWords
	}

	words, dropped := e.selectWords(freqs)
	if len(words) == 0 {
		return &CoverageError{Dropped: dropped}
	}
	if len(dropped) > 0 {
		e.logger.Debug("tokens without glyphs skipped", "count", len(dropped))
	}

	img := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	xdraw.Draw(img, img.Bounds(), image.White, image.Point{}, xdraw.Src)

	minW, maxW := words[len(words)-1].weight, words[0].weight
	var placed []image.Rectangle
	for i, wd := range words {
		scale := e.scaleFor(wd.weight, minW, maxW)
		glyphs := e.drawWord(wd.text, e.palette[i%len(e.palette)])
		size := glyphs.Bounds().Size().Mul(scale)

		rect, ok := e.place(size, placed)
		if !ok {
			e.logger.Debug("no room for word", "token", wd.text, "scale", scale)
			continue
		}
		xdraw.NearestNeighbor.Scale(img, rect, glyphs, glyphs.Bounds(), xdraw.Over, nil)
		placed = append(placed, rect.Inset(-wordPadding))
	}

	return png.Encode(w, img)
}

// selectWords filters by glyph coverage, orders by weight desc then token
// asc, and caps the result at maxWords.
func (e *Engine) selectWords(freqs map[string]int64) ([]word, []string) {
	var words []word
	var dropped []string
	for tok, n := range freqs {
		if n <= 0 || strings.TrimSpace(tok) == "" {
			continue
		}
		if !e.covers(tok) {
			dropped = append(dropped, tok)
			continue
		}
		words = append(words, word{text: tok, weight: n})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].weight != words[j].weight {
			return words[i].weight > words[j].weight
		}
		return words[i].text < words[j].text
	})
	sort.Strings(dropped)
	if len(words) > e.maxWords {
		words = words[:e.maxWords]
	}
	return words, dropped
}

func (e *Engine) covers(tok string) bool {
	for _, r := range tok {
		if r == utf8.RuneError || !inRanges(e.face.Ranges, r) {
			return false
		}
	}
	return true
}

func inRanges(ranges []basicfont.Range, r rune) bool {
	for _, rg := range ranges {
		if r >= rg.Low && r < rg.High {
			return true
		}
	}
	return false
}

func (e *Engine) scaleFor(weight, minW, maxW int64) int {
	if maxW == minW {
		return (e.maxScale + 1) / 2
	}
	frac := float64(weight-minW) / float64(maxW-minW)
	return 1 + int(math.Round(frac*float64(e.maxScale-1)))
}

// drawWord renders text at 1x on a transparent background.
func (e *Engine) drawWord(text string, c color.RGBA) *image.RGBA {
	width := font.MeasureString(e.face, text).Ceil()
	img := image.NewRGBA(image.Rect(0, 0, width, e.face.Height))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: e.face,
		Dot:  fixed.P(0, e.face.Ascent),
	}
	d.DrawString(text)
	return img
}

// place walks a spiral out from the centre and returns the first rectangle
// of the given size that fits the canvas without overlapping placed words.
func (e *Engine) place(size image.Point, placed []image.Rectangle) (image.Rectangle, bool) {
	canvas := image.Rect(0, 0, e.width, e.height)
	if size.X > e.width || size.Y > e.height {
		return image.Rectangle{}, false
	}
	cx, cy := float64(e.width)/2, float64(e.height)/2
	limit := math.Hypot(cx, cy)

	for theta := 0.0; spiralGrowth*theta <= limit; theta += spiralStep {
		r := spiralGrowth * theta
		x := int(cx+r*math.Cos(theta)) - size.X/2
		y := int(cy+r*math.Sin(theta)) - size.Y/2
		rect := image.Rect(x, y, x+size.X, y+size.Y)
		if !rect.In(canvas) {
			continue
		}
		if !overlaps(rect, placed) {
			return rect, true
		}
	}
	return image.Rectangle{}, false
}

func overlaps(r image.Rectangle, placed []image.Rectangle) bool {
	for _, p := range placed {
		if r.Overlaps(p) {
			return true
		}
	}
	return false
}
