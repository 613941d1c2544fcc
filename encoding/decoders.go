package encoding

import (
	"io"
	"unicode/utf8"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
	"golang.org/x/text/encoding/charmap"
)

// Decoder is the capability every built-in decoder in this package
// implements; it is exactly core.TextDecoder, re-exported here so
// callers constructing Options don't need to import the core package by
// name.
type Decoder = core.TextDecoder

// step is the result of one decode attempt: exactly one of a decoded
// rune, an illegal byte sequence (replaced with U+FFFD and reported), or
// end of input.
type step struct {
	r       rune
	illegal []byte
	eof     bool
}

// pushbackReader lets a stepFunc give back bytes it over-read while
// probing for a longer sequence, so recovery only skips the minimum
// illegal prefix per spec.md §4.B's decoder contract.
type pushbackReader struct {
	src io.ByteReader
	buf []byte
}

func (p *pushbackReader) ReadByte() (byte, error) {
	if n := len(p.buf); n > 0 {
		b := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return b, nil
	}
	return p.src.ReadByte()
}

func (p *pushbackReader) unread(b byte) {
	p.buf = append(p.buf, b)
}

type stepFunc func(*pushbackReader) (step, error)

// driveDecode wires a stepFunc into a located rune stream, tracking line
// (incremented on U+000A only) and column, and routing illegal
// sequences through report before substituting U+FFFD.
func driveDecode(name Name, next stepFunc, r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	pr := &pushbackReader{src: r}
	line, col := 1, 1
	advance := func(produced rune) {
		if produced == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return stream.New(func() (stream.Item[core.PositionedRune], error) {
		loc := core.Location{Line: line, Column: col}
		st, err := next(pr)
		if err != nil {
			if err == io.EOF {
				return stream.Item[core.PositionedRune]{End: true}, nil
			}
			return stream.Item[core.PositionedRune]{}, err
		}
		if st.eof {
			return stream.Item[core.PositionedRune]{End: true}, nil
		}
		if len(st.illegal) > 0 {
			if report != nil {
				if rerr := report(loc, &core.DecodingError{Bytes: st.illegal, Encoding: string(name)}); rerr != nil {
					return stream.Item[core.PositionedRune]{}, rerr
				}
			}
			advance(utf8.RuneError)
			return stream.Of(core.PositionedRune{Loc: loc, R: utf8.RuneError}), nil
		}
		advance(st.r)
		return stream.Of(core.PositionedRune{Loc: loc, R: st.r}), nil
	})
}

// UTF8Decoder decodes well-formed and best-effort-recovered UTF-8.
type UTF8Decoder struct{}

func (d UTF8Decoder) Decode(r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	return driveDecode(UTF8, utf8Step, r, report)
}

func utf8SeqLen(b0 byte) int {
	switch {
	case b0 < 0x80:
		return 1
	case b0 >= 0xC2 && b0 <= 0xDF:
		return 2
	case b0 >= 0xE0 && b0 <= 0xEF:
		return 3
	case b0 >= 0xF0 && b0 <= 0xF4:
		return 4
	default:
		return 0
	}
}

func utf8Step(r *pushbackReader) (step, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return step{}, io.EOF
	}
	n := utf8SeqLen(b0)
	if n == 0 {
		return step{illegal: []byte{b0}}, nil
	}
	if n == 1 {
		return step{r: rune(b0)}, nil
	}
	buf := make([]byte, 1, n)
	buf[0] = b0
	for i := 1; i < n; i++ {
		bi, err := r.ReadByte()
		if err != nil {
			return step{illegal: buf}, nil
		}
		if bi&0xC0 != 0x80 {
			r.unread(bi)
			return step{illegal: buf}, nil
		}
		buf = append(buf, bi)
	}
	rv, size := utf8.DecodeRune(buf)
	if rv == utf8.RuneError && size <= 1 {
		return step{illegal: buf}, nil
	}
	return step{r: rv}, nil
}

// UTF16Decoder decodes UTF-16, combining surrogate pairs. The caller
// (Detect, or an explicit Options.Decoder) picks the endianness; this
// decoder does not itself special-case a leading BOM, since Detect has
// already consumed and classified it.
type UTF16Decoder struct {
	BigEndian bool
}

func (d UTF16Decoder) Decode(r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	name := UTF16LE
	if d.BigEndian {
		name = UTF16BE
	}
	return driveDecode(name, d.step, r, report)
}

func (d UTF16Decoder) readUnit(r *pushbackReader) (uint16, []byte, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, nil, io.EOF
	}
	b1, err := r.ReadByte()
	if err != nil {
		return 0, []byte{b0}, nil
	}
	var u uint16
	if d.BigEndian {
		u = uint16(b0)<<8 | uint16(b1)
	} else {
		u = uint16(b1)<<8 | uint16(b0)
	}
	return u, nil, nil
}

func (d UTF16Decoder) step(r *pushbackReader) (step, error) {
	hi, illegal, err := d.readUnit(r)
	if err != nil {
		return step{}, err
	}
	if illegal != nil {
		return step{illegal: illegal}, nil
	}
	if hi >= 0xD800 && hi <= 0xDBFF {
		lo, illegal, err := d.readUnit(r)
		if err != nil {
			return step{}, err
		}
		if illegal != nil {
			return step{illegal: append(unitBytes(d.BigEndian, hi), illegal...)}, nil
		}
		if lo < 0xDC00 || lo > 0xDFFF {
			// Not a low surrogate: push the unit's bytes back so the
			// next call reprocesses them as their own code unit.
			b := unitBytes(d.BigEndian, lo)
			r.unread(b[1])
			r.unread(b[0])
			return step{illegal: unitBytes(d.BigEndian, hi)}, nil
		}
		rv := 0x10000 + (rune(hi-0xD800) << 10) + rune(lo-0xDC00)
		return step{r: rv}, nil
	}
	if hi >= 0xDC00 && hi <= 0xDFFF {
		return step{illegal: unitBytes(d.BigEndian, hi)}, nil
	}
	return step{r: rune(hi)}, nil
}

func unitBytes(bigEndian bool, u uint16) []byte {
	if bigEndian {
		return []byte{byte(u >> 8), byte(u)}
	}
	return []byte{byte(u), byte(u >> 8)}
}

// UTF32Decoder decodes fixed-width 4-byte code points, including the
// byte-swapped "transposed" orderings the XML spec's sniff table names.
type UTF32Decoder struct {
	BigEndian bool
	// Order, if set, overrides BigEndian with an explicit mapping from
	// output byte position (0=MSB..3=LSB) to input byte index, for the
	// ucs-4be-transposed / ucs-4le-transposed orderings.
	Order *[4]int
}

func (d UTF32Decoder) Decode(r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	name := UCS4LE
	if d.BigEndian {
		name = UCS4BE
	}
	if d.Order != nil {
		switch *d.Order {
		case [4]int{2, 3, 0, 1}:
			name = UCS4Transposed2301
		case [4]int{1, 0, 3, 2}:
			name = UCS4Transposed1032
		}
	}
	return driveDecode(name, d.step, r, report)
}

func (d UTF32Decoder) step(r *pushbackReader) (step, error) {
	var buf [4]byte
	n := 0
	for ; n < 4; n++ {
		b, err := r.ReadByte()
		if err != nil {
			if n == 0 {
				return step{}, io.EOF
			}
			return step{illegal: append([]byte(nil), buf[:n]...)}, nil
		}
		buf[n] = b
	}
	order := [4]int{0, 1, 2, 3}
	if !d.BigEndian {
		order = [4]int{3, 2, 1, 0}
	}
	if d.Order != nil {
		order = *d.Order
	}
	v := uint32(buf[order[0]])<<24 | uint32(buf[order[1]])<<16 | uint32(buf[order[2]])<<8 | uint32(buf[order[3]])
	if v > 0x10FFFF || (v >= 0xD800 && v <= 0xDFFF) {
		return step{illegal: append([]byte(nil), buf[:]...)}, nil
	}
	return step{r: rune(v)}, nil
}

// ASCIIDecoder decodes US-ASCII; any byte with the high bit set is an
// illegal sequence of length one.
type ASCIIDecoder struct{}

func (d ASCIIDecoder) Decode(r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	return driveDecode(ASCII, func(r *pushbackReader) (step, error) {
		b, err := r.ReadByte()
		if err != nil {
			return step{}, io.EOF
		}
		if b >= 0x80 {
			return step{illegal: []byte{b}}, nil
		}
		return step{r: rune(b)}, nil
	}, r, report)
}

// CharmapDecoder decodes a single-byte legacy code page via
// golang.org/x/text/encoding/charmap's tables: every byte maps to
// exactly one rune, so unlike the variable-width decoders above there
// is never a multi-byte resync to perform — an "illegal" byte is simply
// one the code page leaves undefined, which charmap reports as
// utf8.RuneError.
type CharmapDecoder struct {
	Name Name
}

func (d CharmapDecoder) charmap() *charmap.Charmap {
	switch d.Name {
	case Windows1252:
		return charmap.Windows1252
	case Windows1251:
		return charmap.Windows1251
	default:
		return charmap.ISO8859_1
	}
}

func (d CharmapDecoder) Decode(r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	dec := d.charmap().NewDecoder()
	return driveDecode(d.Name, func(r *pushbackReader) (step, error) {
		b, err := r.ReadByte()
		if err != nil {
			return step{}, io.EOF
		}
		out, derr := dec.Bytes([]byte{b})
		if derr != nil {
			return step{illegal: []byte{b}}, nil
		}
		rv, size := utf8.DecodeRune(out)
		if rv == utf8.RuneError && size <= 1 {
			return step{illegal: []byte{b}}, nil
		}
		return step{r: rv}, nil
	}, r, report)
}

// EBCDIC37Decoder decodes IBM code page 037 (EBCDIC, US/Canada). No
// library in the retrieved example pack covers EBCDIC, so the table is
// hand-written here; see ebcdic037Table for the mapping and its
// limitations.
type EBCDIC37Decoder struct{}

func (d EBCDIC37Decoder) Decode(r io.ByteReader, report func(core.Location, error) error) *stream.Stream[core.PositionedRune] {
	return driveDecode(EBCDIC37, func(r *pushbackReader) (step, error) {
		b, err := r.ReadByte()
		if err != nil {
			return step{}, io.EOF
		}
		return step{r: ebcdic037Table[b]}, nil
	}, r, report)
}
