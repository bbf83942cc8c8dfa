package textframe

import (
	"image/color"
	"math"
	"slices"
	"sync"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/text/unicode/bidi"

	"github.com/gogpu/label/geom"
)

// Alignment is the horizontal placement of lines within the layout width.
type Alignment uint8

const (
	// AlignNatural aligns left for left-to-right paragraphs and right for
	// right-to-left ones.
	AlignNatural Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Style describes how a span of text looks.
type Style struct {
	Font  *Font
	Size  float64
	Color color.RGBA

	// Background fills the line box behind the span when non-transparent.
	Background color.RGBA

	Underline     bool
	Strikethrough bool
}

// Span is a piece of text with one style.
type Span struct {
	Text  string
	Style Style
}

// Options controls line breaking and placement.
type Options struct {
	// MaxWidth is the wrapping width in points. Zero disables wrapping.
	MaxWidth float64

	Alignment Alignment

	// LineSpacing multiplies the natural line height. Zero means 1.
	LineSpacing float64

	// MaxLines limits the number of lines. Zero means unlimited.
	MaxLines int

	// TruncationToken is appended to the last line when MaxLines drops text.
	TruncationToken string

	// Language is a BCP 47 tag passed to the shaper. Defaults to "en".
	Language string
}

// Builder lays out styled text into Frames. A Builder is safe for
// concurrent use.
type Builder struct {
	shapers sync.Pool
}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.shapers.New = func() any { return &shaping.HarfbuzzShaper{} }
	return b
}

var defaultBuilder = NewBuilder()

// Build lays out spans with the package's shared Builder.
func Build(spans []Span, opts Options) (*Frame, error) {
	return defaultBuilder.Build(spans, opts)
}

// BuildString lays out a single-style string with the shared Builder.
func BuildString(text string, style Style, opts Options) (*Frame, error) {
	return defaultBuilder.Build([]Span{{Text: text, Style: style}}, opts)
}

// BuildString lays out a single-style string.
func (b *Builder) BuildString(text string, style Style, opts Options) (*Frame, error) {
	return b.Build([]Span{{Text: text, Style: style}}, opts)
}

// Build lays out spans into a new Frame.
func (b *Builder) Build(spans []Span, opts Options) (*Frame, error) {
	l := &layout{
		b:    b,
		opts: opts,
		lang: language.NewLanguage("en"),
	}
	if opts.Language != "" {
		l.lang = language.NewLanguage(opts.Language)
	}
	if l.opts.LineSpacing <= 0 {
		l.opts.LineSpacing = 1
	}
	for _, sp := range spans {
		if sp.Style.Font == nil {
			return nil, ErrNilFont
		}
		if !(sp.Style.Size > 0) || math.IsInf(sp.Style.Size, 0) {
			return nil, ErrInvalidSize
		}
		l.styles = append(l.styles, sp.Style)
		for _, r := range sp.Text {
			l.text = append(l.text, r)
			l.styleOf = append(l.styleOf, len(l.styles)-1)
		}
	}
	if len(l.text) == 0 {
		return newFrame(nil, nil), nil
	}
	l.advances = make([]float64, len(l.text))
	l.rtlOf = make([]bool, len(l.text))
	l.run()
	f := newFrame(l.text, l.lines)
	f.truncated = l.truncated
	return f, nil
}

// piece is a maximal rune range with one style and one direction.
type piece struct {
	start, end int
	style      int
	rtl        bool
}

type layout struct {
	b    *Builder
	opts Options
	lang language.Language

	text     []rune
	styles   []Style
	styleOf  []int
	advances []float64 // per rune, summed over the glyphs of its cluster
	rtlOf    []bool

	lines     []Line
	truncated bool
	y         float64
}

type paragraph struct {
	start, end int
	rtl        bool
}

func (l *layout) run() {
	var paras []paragraph
	ps := 0
	for i := 0; i <= len(l.text); i++ {
		if i < len(l.text) && l.text[i] != '\n' {
			continue
		}
		p := paragraph{start: ps, end: i}
		l.analyze(&p)
		paras = append(paras, p)
		ps = i + 1
	}

	widths := []float64{}
	lineRTL := []bool{}
	for _, p := range paras {
		breaks := l.wrap(p)
		for i, ls := range breaks {
			le := p.end
			if i+1 < len(breaks) {
				le = breaks[i+1]
			}
			if l.opts.MaxLines > 0 && len(l.lines) == l.opts.MaxLines {
				l.truncate(paras, widths, lineRTL)
				l.align(widths, lineRTL)
				return
			}
			line := l.buildLine(p, ls, le, "")
			// The newline terminating the paragraph belongs to its last line.
			if i == len(breaks)-1 && p.end < len(l.text) {
				line.Range.End = p.end + 1
			}
			l.lines = append(l.lines, line)
			widths = append(widths, line.Width)
			lineRTL = append(lineRTL, p.rtl)
		}
	}
	l.align(widths, lineRTL)
}

// analyze resolves the paragraph direction and the per-rune bidi
// direction, then measures every rune.
func (l *layout) analyze(p *paragraph) {
	p.rtl = baseRTL(l.text[p.start:p.end])
	if p.start == p.end {
		return
	}
	for i := p.start; i < p.end; i++ {
		l.rtlOf[i] = p.rtl
	}
	def := bidi.LeftToRight
	if p.rtl {
		def = bidi.RightToLeft
	}
	var para bidi.Paragraph
	if _, err := para.SetString(string(l.text[p.start:p.end]), bidi.DefaultDirection(def)); err == nil {
		if ord, err := para.Order(); err == nil {
			for i := range ord.NumRuns() {
				run := ord.Run(i)
				s, e := run.Pos()
				rtl := run.Direction() == bidi.RightToLeft
				for j := s; j <= e && p.start+j < p.end; j++ {
					l.rtlOf[p.start+j] = rtl
				}
			}
		}
	}

	for _, pc := range l.pieces(p.start, p.end) {
		out := l.shape(p, pc)
		for _, g := range out.Glyphs {
			idx := p.start + g.TextIndex()
			if idx >= p.start && idx < p.end {
				l.advances[idx] += fromFixed(g.Advance)
			}
		}
	}
}

// baseRTL applies rule P2 of the Unicode bidi algorithm: the first strong
// character decides.
func baseRTL(text []rune) bool {
	for _, r := range text {
		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.L:
			return false
		case bidi.R, bidi.AL:
			return true
		}
	}
	return false
}

// pieces splits [start, end) at style and direction changes.
func (l *layout) pieces(start, end int) []piece {
	var out []piece
	for i := start; i < end; {
		pc := piece{start: i, style: l.styleOf[i], rtl: l.rtlOf[i]}
		j := i + 1
		for j < end && l.styleOf[j] == pc.style && l.rtlOf[j] == pc.rtl {
			j++
		}
		pc.end = j
		out = append(out, pc)
		i = j
	}
	return out
}

func (l *layout) shape(p *paragraph, pc piece) shaping.Output {
	st := l.styles[pc.style]
	dir := di.DirectionLTR
	if pc.rtl {
		dir = di.DirectionRTL
	}
	runes := l.text[p.start:p.end]
	in := shaping.Input{
		Text:      runes,
		RunStart:  pc.start - p.start,
		RunEnd:    pc.end - p.start,
		Direction: dir,
		Face:      gotext.NewFace(st.Font.shaped),
		Size:      toFixed(st.Size),
		Script:    detectScript(runes[pc.start-p.start : pc.end-p.start]),
		Language:  l.lang,
	}
	hb := l.b.shapers.Get().(*shaping.HarfbuzzShaper)
	out := hb.Shape(in)
	l.b.shapers.Put(hb)
	return out
}

func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if isSpace(r) {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// wrap returns the start index of every line in the paragraph. Lines break
// after whitespace; a word wider than MaxWidth is broken between runes.
// Trailing whitespace hangs past the width.
func (l *layout) wrap(p paragraph) []int {
	starts := []int{p.start}
	if l.opts.MaxWidth <= 0 || p.start == p.end {
		return starts
	}
	ls := p.start
	width := 0.0
	lastBreak := -1
	for i := p.start; i < p.end; i++ {
		r := l.text[i]
		if i > ls && isSpace(l.text[i-1]) && !isSpace(r) {
			lastBreak = i
		}
		if isSpace(r) {
			width += l.advances[i]
			continue
		}
		if width+l.advances[i] > l.opts.MaxWidth && i > ls {
			next := i
			if lastBreak > ls {
				next = lastBreak
			}
			starts = append(starts, next)
			ls = next
			lastBreak = -1
			width = l.widthOf(ls, i)
		}
		width += l.advances[i]
	}
	return starts
}

func (l *layout) widthOf(start, end int) float64 {
	w := 0.0
	for i := start; i < end; i++ {
		w += l.advances[i]
	}
	return w
}

// contentEnd trims trailing whitespace from [start, end).
func (l *layout) contentEnd(start, end int) int {
	for end > start && isSpace(l.text[end-1]) {
		end--
	}
	return end
}

// buildLine shapes [start, end) of paragraph p into a Line at the current
// vertical position. A non-empty token is shaped with the style of the
// last rune and placed after the content in reading order.
func (l *layout) buildLine(p paragraph, start, end int, token string) Line {
	line := Line{Range: Range{start, end}}
	ce := l.contentEnd(start, end)
	pcs := l.pieces(start, ce)

	lastStyle := l.styleAt(end)
	metrics := func(st Style) {
		m := st.Font.Metrics(st.Size)
		line.Ascent = max(line.Ascent, m.Ascent)
		line.Descent = max(line.Descent, m.Descent+m.LineGap)
	}
	if len(pcs) == 0 {
		metrics(l.styles[lastStyle])
	}
	for _, pc := range pcs {
		metrics(l.styles[pc.style])
	}
	line.Baseline = l.y + line.Ascent
	height := (line.Ascent + line.Descent) * l.opts.LineSpacing

	runs := make([]Run, 0, len(pcs)+1)
	for _, pc := range pcs {
		runs = append(runs, l.makeRun(l.shape(&p, pc), p.start, pc, line))
	}
	order := visualOrder(pcs, p.rtl)
	if token != "" {
		tr := l.tokenRun(token, lastStyle, end, line)
		runs = append(runs, tr)
		idx := len(runs) - 1
		if p.rtl {
			order = append([]int{idx}, order...)
		} else {
			order = append(order, idx)
		}
	}

	x := 0.0
	placed := make([]Run, 0, len(runs))
	for _, i := range order {
		r := runs[i]
		r.Origin = geom.Pt(x, line.Baseline)
		r.Ink = r.Ink.Add(r.Origin)
		x += r.Advance
		placed = append(placed, r)
	}
	line.Runs = placed
	line.Width = x
	line.Rect = geom.Rect{
		Min: geom.Pt(0, l.y),
		Max: geom.Pt(x, l.y+height),
	}
	l.y += height
	return line
}

// styleAt returns the style of the rune before end, or of end itself when
// the line is empty at the start of the text.
func (l *layout) styleAt(end int) int {
	if end > 0 {
		return l.styleOf[end-1]
	}
	return l.styleOf[0]
}

// makeRun converts shaper output into a Run with glyph positions relative
// to the run origin. Ink is relative to the origin until the run is placed.
func (l *layout) makeRun(out shaping.Output, base int, pc piece, line Line) Run {
	st := l.styles[pc.style]
	r := Run{
		Range:         Range{pc.start, pc.end},
		Font:          st.Font,
		Size:          st.Size,
		Color:         st.Color,
		Background:    st.Background,
		Underline:     st.Underline,
		Strikethrough: st.Strikethrough,
		Glyphs:        make([]Glyph, 0, len(out.Glyphs)),
		ascent:        line.Ascent,
		descent:       line.Descent,
	}
	x := 0.0
	for _, g := range out.Glyphs {
		adv := fromFixed(g.Advance)
		gl := Glyph{
			ID:      GlyphID(uint16(g.GlyphID)), //nolint:gosec // glyph indices fit in 16 bits
			Cluster: base + g.TextIndex(),
			Pos:     geom.Pt(x+fromFixed(g.XOffset), -fromFixed(g.YOffset)),
			Advance: adv,
		}
		if o := st.Font.Outline(gl.ID); !o.IsEmpty() {
			r.Ink = r.Ink.Union(o.Bounds.Scale(st.Size).Add(gl.Pos))
		}
		r.Glyphs = append(r.Glyphs, gl)
		x += adv
	}
	r.Advance = x
	return r
}

func (l *layout) tokenRun(token string, style, at int, line Line) Run {
	runes := []rune(token)
	st := l.styles[style]
	dir := di.DirectionLTR
	if baseRTL(runes) {
		dir = di.DirectionRTL
	}
	hb := l.b.shapers.Get().(*shaping.HarfbuzzShaper)
	out := hb.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      gotext.NewFace(st.Font.shaped),
		Size:      toFixed(st.Size),
		Script:    detectScript(runes),
		Language:  l.lang,
	})
	l.b.shapers.Put(hb)

	r := l.makeRun(out, 0, piece{start: at, end: at, style: style}, line)
	for i := range r.Glyphs {
		r.Glyphs[i].Cluster = at
	}
	return r
}

// truncate rebuilds the last kept line so that the truncation token fits.
func (l *layout) truncate(paras []paragraph, widths []float64, lineRTL []bool) {
	l.truncated = true
	n := len(l.lines)
	if n == 0 || l.opts.TruncationToken == "" {
		return
	}
	last := l.lines[n-1]
	var p paragraph
	for _, pp := range paras {
		if last.Range.Start >= pp.start && last.Range.Start <= pp.end {
			p = pp
			break
		}
	}
	tokenW := l.measureToken(l.styleAt(last.Range.End))
	start := last.Range.Start
	end := l.contentEnd(start, min(last.Range.End, p.end))
	if l.opts.MaxWidth > 0 {
		for end > start && l.widthOf(start, end)+tokenW > l.opts.MaxWidth {
			end--
		}
		end = l.contentEnd(start, end)
	}
	l.y = last.Rect.Min.Y
	line := l.buildLine(p, start, end, l.opts.TruncationToken)
	line.Range = last.Range
	l.lines[n-1] = line
	widths[n-1] = line.Width
	lineRTL[n-1] = p.rtl
}

func (l *layout) measureToken(style int) float64 {
	r := l.tokenRun(l.opts.TruncationToken, style, 0, Line{})
	return r.Advance
}

// align shifts every line horizontally according to Options.Alignment.
func (l *layout) align(widths []float64, rtl []bool) {
	area := l.opts.MaxWidth
	if area <= 0 {
		for _, w := range widths {
			area = max(area, w)
		}
	}
	for i := range l.lines {
		var dx float64
		switch l.opts.Alignment {
		case AlignCenter:
			dx = (area - widths[i]) / 2
		case AlignRight:
			dx = area - widths[i]
		case AlignNatural:
			if rtl[i] {
				dx = area - widths[i]
			}
		}
		if dx == 0 {
			continue
		}
		line := &l.lines[i]
		shift := geom.Pt(dx, 0)
		line.Rect = line.Rect.Add(shift)
		for j := range line.Runs {
			line.Runs[j].Origin = line.Runs[j].Origin.Add(shift)
			if !line.Runs[j].Ink.Empty() {
				line.Runs[j].Ink = line.Runs[j].Ink.Add(shift)
			}
		}
	}
}

// visualOrder returns piece indices in display order: runs against the
// paragraph direction are reversed in place, and the whole line is reversed
// for right-to-left paragraphs.
func visualOrder(pcs []piece, rtl bool) []int {
	order := make([]int, len(pcs))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); {
		if pcs[order[i]].rtl == rtl {
			i++
			continue
		}
		j := i
		for j < len(order) && pcs[order[j]].rtl != rtl {
			j++
		}
		slices.Reverse(order[i:j])
		i = j
	}
	if rtl {
		slices.Reverse(order)
	}
	return order
}
