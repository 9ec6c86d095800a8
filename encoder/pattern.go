package encoder

import (
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap/buffer"
)

// DefaultPattern is used when an appender configures no pattern.
const DefaultPattern = "{d} {l} {t} - {m}{n}"

// Pattern is a compiled format string. Compile once, then Encode from any goroutine.
//
// Directives are written as {name}, {name(arg)...} or {name:spec}:
//
//	{d} {date}                 timestamp, RFC3339Nano in local time
//	{d(layout)(utc|local)}     timestamp with a Go layout and optional zone
//	{l} {level}                level name
//	{m} {message}              message
//	{t} {target} {c} {logger}  logger name
//	{f} {file}  {L} {line}     caller file and line
//	{M} {module}               caller function
//	{P} {pid}                  process id
//	{n}                        newline
//	{X(key)(default)} {mdc}    value of a structured field
//	{F} {fields}               all structured fields as key=value
//	{h(...)} {highlight}       sub-pattern colored by level
//
// The optional spec is [fill][<|>|^][min][.max]. Use {{ and }} for literal braces.
type Pattern struct {
	source string
	pieces []piece
}

type piece interface {
	render(buf *buffer.Buffer, r *record.Record)
}

// Compile parses a pattern string.
func Compile(pattern string) (*Pattern, error) {
	p := &parser{src: pattern, scheme: NewDefaultColorScheme()}
	pieces, err := p.parsePieces(false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "pattern "+strconv.Quote(pattern))
	}
	return &Pattern{source: pattern, pieces: pieces}, nil
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// Encode implements Encoder.
func (p *Pattern) Encode(buf *buffer.Buffer, r *record.Record) error {
	for _, pc := range p.pieces {
		pc.render(buf, r)
	}
	return nil
}

// Format renders r into a new byte slice.
func (p *Pattern) Format(r *record.Record) []byte {
	buf := pool.Get()
	defer buf.Free()
	_ = p.Encode(buf, r)
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

var _ Encoder = (*Pattern)(nil)

type parser struct {
	src    string
	pos    int
	scheme ColorScheme
}

type parseError string

func (e parseError) Error() string { return string(e) }

func (p *parser) fail(msg string) error {
	return parseError(msg + " at offset " + strconv.Itoa(p.pos))
}

func (p *parser) peek(off int) byte {
	if p.pos+off < len(p.src) {
		return p.src[p.pos+off]
	}
	return 0
}

// parsePieces reads until the end of input, or until an unescaped ')' when nested.
func (p *parser) parsePieces(nested bool) ([]piece, error) {
	var (
		pieces []piece
		lit    strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			pieces = append(pieces, literal(lit.String()))
			lit.Reset()
		}
	}

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '{' && p.peek(1) == '{':
			lit.WriteByte('{')
			p.pos += 2
		case c == '}' && p.peek(1) == '}':
			lit.WriteByte('}')
			p.pos += 2
		case c == '{':
			flush()
			pc, err := p.parseDirective()
			if err != nil {
				return nil, err
			}
			pieces = append(pieces, pc)
		case c == '}':
			return nil, p.fail("unmatched '}'")
		case c == ')' && nested:
			flush()
			return pieces, nil
		case c == '\\' && p.pos+1 < len(p.src):
			lit.WriteByte(p.src[p.pos+1])
			p.pos += 2
		default:
			lit.WriteByte(c)
			p.pos++
		}
	}
	if nested {
		return nil, p.fail("unterminated '('")
	}
	flush()
	return pieces, nil
}

func (p *parser) parseDirective() (piece, error) {
	p.pos++ // '{'
	start := p.pos
	for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if name == "" {
		return nil, p.fail("missing directive name")
	}

	var (
		args []string
		sub  []piece
	)
	for p.peek(0) == '(' {
		p.pos++
		if name == "h" || name == "highlight" {
			pieces, err := p.parsePieces(true)
			if err != nil {
				return nil, err
			}
			sub = pieces
		} else {
			arg, err := p.rawArg()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		p.pos++ // ')'
	}

	var spec *formatSpec
	if p.peek(0) == ':' {
		p.pos++
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return nil, p.fail("unterminated directive")
		}
		s, err := parseSpec(p.src[p.pos : p.pos+end])
		if err != nil {
			return nil, p.fail(err.Error())
		}
		spec = s
		p.pos += end
	}
	if p.peek(0) != '}' {
		return nil, p.fail("expected '}' after " + strconv.Quote(name))
	}
	p.pos++

	pc, err := p.directive(name, args, sub)
	if err != nil {
		return nil, err
	}
	if spec != nil {
		return formatted{inner: pc, spec: *spec}, nil
	}
	return pc, nil
}

// rawArg reads up to the ')' that balances the already consumed '('.
func (p *parser) rawArg() (string, error) {
	depth := 0
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return p.src[start:p.pos], nil
			}
			depth--
		}
		p.pos++
	}
	return "", p.fail("unterminated '('")
}

func (p *parser) directive(name string, args []string, sub []piece) (piece, error) {
	noArgs := func(pc piece) (piece, error) {
		if len(args) > 0 {
			return nil, p.fail(strconv.Quote(name) + " takes no arguments")
		}
		return pc, nil
	}

	switch name {
	case "d", "date":
		return newDate(args)
	case "l", "level":
		return noArgs(levelPiece{})
	case "m", "message":
		return noArgs(messagePiece{})
	case "t", "target", "c", "logger":
		return noArgs(loggerPiece{})
	case "f", "file":
		return noArgs(filePiece{})
	case "L", "line":
		return noArgs(linePiece{})
	case "M", "module":
		return noArgs(modulePiece{})
	case "P", "pid":
		return noArgs(literal(strconv.Itoa(os.Getpid())))
	case "n":
		return noArgs(literal("\n"))
	case "X", "mdc":
		if len(args) == 0 || args[0] == "" {
			return nil, p.fail(strconv.Quote(name) + " requires a key")
		}
		fp := fieldPiece{key: args[0]}
		if len(args) > 1 {
			fp.fallback = args[1]
		}
		return fp, nil
	case "F", "fields":
		return noArgs(fieldsPiece{})
	case "h", "highlight":
		return highlightPiece{sub: sub, scheme: p.scheme}, nil
	default:
		return nil, p.fail("unknown directive " + strconv.Quote(name))
	}
}

func isNameByte(c byte) bool {
	return c < utf8.RuneSelf && (unicode.IsLetter(rune(c)) || c == '_')
}

type literal string

func (l literal) render(buf *buffer.Buffer, _ *record.Record) {
	buf.AppendString(string(l))
}

type datePiece struct {
	layout string
	utc    bool
}

func newDate(args []string) (piece, error) {
	d := datePiece{layout: time.RFC3339Nano}
	if len(args) > 0 && args[0] != "" {
		d.layout = args[0]
	}
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "utc":
			d.utc = true
		case "local", "":
		default:
			return nil, parseError("unknown time zone " + strconv.Quote(args[1]))
		}
	}
	if len(args) > 2 {
		return nil, parseError("date takes at most two arguments")
	}
	return d, nil
}

func (d datePiece) render(buf *buffer.Buffer, r *record.Record) {
	t := r.Time
	if d.utc {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	buf.AppendTime(t, d.layout)
}

type levelPiece struct{}

func (levelPiece) render(buf *buffer.Buffer, r *record.Record) {
	buf.AppendString(r.Level.String())
}

type messagePiece struct{}

func (messagePiece) render(buf *buffer.Buffer, r *record.Record) {
	buf.AppendString(r.Message)
}

type loggerPiece struct{}

func (loggerPiece) render(buf *buffer.Buffer, r *record.Record) {
	if r.Logger == "" {
		buf.AppendString("root")
		return
	}
	buf.AppendString(r.Logger)
}

type filePiece struct{}

func (filePiece) render(buf *buffer.Buffer, r *record.Record) {
	if r.Caller.Defined {
		buf.AppendString(r.Caller.File)
	}
}

type linePiece struct{}

func (linePiece) render(buf *buffer.Buffer, r *record.Record) {
	if r.Caller.Defined {
		buf.AppendInt(int64(r.Caller.Line))
	}
}

type modulePiece struct{}

func (modulePiece) render(buf *buffer.Buffer, r *record.Record) {
	if r.Caller.Defined {
		buf.AppendString(r.Caller.Function)
	}
}

type fieldPiece struct {
	key      string
	fallback string
}

func (f fieldPiece) render(buf *buffer.Buffer, r *record.Record) {
	if v, ok := r.Field(f.key); ok {
		buf.AppendString(v)
		return
	}
	buf.AppendString(f.fallback)
}

type fieldsPiece struct{}

func (fieldsPiece) render(buf *buffer.Buffer, r *record.Record) {
	for i, f := range r.Fields {
		if i > 0 {
			buf.AppendByte(' ')
		}
		buf.AppendString(f.Key)
		buf.AppendByte('=')
		buf.AppendString(record.FieldValue(f))
	}
}

type highlightPiece struct {
	sub    []piece
	scheme ColorScheme
}

func (h highlightPiece) render(buf *buffer.Buffer, r *record.Record) {
	buf.AppendString(h.scheme.LevelColor(r.Level))
	for _, pc := range h.sub {
		pc.render(buf, r)
	}
	buf.AppendString(Reset)
}

type alignment byte

const (
	alignLeft   alignment = '<'
	alignRight  alignment = '>'
	alignCenter alignment = '^'
)

type formatSpec struct {
	fill  rune
	align alignment
	min   int
	max   int
}

func parseSpec(s string) (*formatSpec, error) {
	spec := &formatSpec{fill: ' ', align: alignLeft}
	runes := []rune(s)
	isAlign := func(r rune) bool { return r == '<' || r == '>' || r == '^' }

	switch {
	case len(runes) >= 2 && isAlign(runes[1]):
		spec.fill, spec.align = runes[0], alignment(runes[1])
		runes = runes[2:]
	case len(runes) >= 1 && isAlign(runes[0]):
		spec.align = alignment(runes[0])
		runes = runes[1:]
	}

	rest := string(runes)
	minPart, maxPart, hasMax := strings.Cut(rest, ".")
	if minPart != "" {
		n, err := strconv.Atoi(minPart)
		if err != nil || n < 0 {
			return nil, parseError("invalid min width " + strconv.Quote(minPart))
		}
		spec.min = n
	}
	if hasMax {
		n, err := strconv.Atoi(maxPart)
		if err != nil || n <= 0 {
			return nil, parseError("invalid max width " + strconv.Quote(maxPart))
		}
		spec.max = n
	}
	return spec, nil
}

type formatted struct {
	inner piece
	spec  formatSpec
}

func (f formatted) render(buf *buffer.Buffer, r *record.Record) {
	tmp := pool.Get()
	defer tmp.Free()
	f.inner.render(tmp, r)
	f.spec.apply(buf, tmp.Bytes())
}

func (s formatSpec) apply(buf *buffer.Buffer, value []byte) {
	count := utf8.RuneCount(value)
	if s.max > 0 && count > s.max {
		cut, n := 0, 0
		for n < s.max {
			_, size := utf8.DecodeRune(value[cut:])
			cut += size
			n++
		}
		value = value[:cut]
		count = s.max
	}

	pad := s.min - count
	if pad <= 0 {
		_, _ = buf.Write(value)
		return
	}

	var left, right int
	switch s.align {
	case alignRight:
		left = pad
	case alignCenter:
		left = pad / 2
		right = pad - left
	default:
		right = pad
	}
	s.writeFill(buf, left)
	_, _ = buf.Write(value)
	s.writeFill(buf, right)
}

func (s formatSpec) writeFill(buf *buffer.Buffer, n int) {
	var tmp [utf8.UTFMax]byte
	size := utf8.EncodeRune(tmp[:], s.fill)
	for i := 0; i < n; i++ {
		_, _ = buf.Write(tmp[:size])
	}
}
