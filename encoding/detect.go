// Detection implements spec.md §4.B: BOM sniffing, then the XML
// four-byte tentative-encoding table (or, for HTML, a Windows-1252
// default), then a bounded look at the XML declaration or <meta
// charset> to possibly switch decoders, all without ever buffering more
// than a small fixed prefix of the input.
package encoding

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// recordingReader records every byte physically read from src, so
// Detect can hand back a reader that replays the sniffed prefix before
// continuing from src — the "restart the byte stream from the
// beginning" spec.md §4.B.3 describes, implemented as a bounded replay
// buffer rather than an actual rewind.
type recordingReader struct {
	src      io.ByteReader
	recorded []byte
}

func (r *recordingReader) ReadByte() (byte, error) {
	b, err := r.src.ReadByte()
	if err == nil {
		r.recorded = append(r.recorded, b)
	}
	return b, err
}

// replayReader first yields bytes from a recorded prefix, then
// continues reading from rest.
type replayReader struct {
	recorded []byte
	idx      int
	rest     io.ByteReader
}

func (r *replayReader) ReadByte() (byte, error) {
	if r.idx < len(r.recorded) {
		b := r.recorded[r.idx]
		r.idx++
		return b, nil
	}
	return r.rest.ReadByte()
}

// maxSniffRunes bounds how far Detect looks for an XML declaration or a
// <meta charset>, so detection never depends on how large the document
// is.
const maxSniffRunes = 2048

// Detect runs the detection algorithm and returns the decoder to use,
// a byte reader that starts at the true beginning of the input (the
// replay of whatever detection itself consumed, followed by src), and
// the Name it settled on (empty if explicit was supplied). logger
// receives a Debug record when the declaration/meta-charset sniff
// switches away from the tentative decoder chosen by BOM or byte
// pattern (an internal recoverable condition, not a spec-defined
// parse error, so it is not reported via Options.Report).
func Detect(src io.ByteReader, isHTML bool, explicit Decoder, logger *slog.Logger) (Decoder, io.ByteReader, Name, error) {
	if explicit != nil {
		return explicit, src, "", nil
	}
	if logger == nil {
		logger = noopLogger
	}

	rec := &recordingReader{src: src}

	var peek [4]byte
	n := 0
	for ; n < 4; n++ {
		b, err := rec.ReadByte()
		if err != nil {
			break
		}
		peek[n] = b
	}

	name, dec, bomLen, viaBOM := matchBOM(peek, n)
	if !viaBOM {
		if isHTML {
			name, dec = Windows1252, CharmapDecoder{Name: Windows1252}
		} else if nm, d, ok := matchFourBytePattern(peek, n); ok {
			name, dec = nm, d
		} else {
			name, dec = UTF8, UTF8Decoder{}
		}
	}

	// The sniff must see the peeked bytes too (after any BOM), so it reads
	// a replay of them before continuing through rec.
	sniffSrc := &replayReader{recorded: append([]byte(nil), rec.recorded[bomLen:]...), rest: rec}
	finalName, finalDec := sniffDeclaration(name, dec, isHTML, sniffSrc)
	if finalName != name {
		logger.Debug("decoder fallback chosen", "tentative", string(name), "declared", string(finalName))
	}

	body := append([]byte(nil), rec.recorded...)
	if bomLen <= len(body) {
		body = body[bomLen:]
	}
	return finalDec, &replayReader{recorded: body, rest: src}, finalName, nil
}

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// matchBOM matches the byte-order marks of spec.md §4.B.1, longest
// pattern first so a 4-byte UTF-32 BOM isn't mistaken for a 2-byte
// UTF-16 one.
func matchBOM(peek [4]byte, n int) (Name, Decoder, int, bool) {
	type bomEntry struct {
		bytes []byte
		name  Name
		dec   Decoder
	}
	entries := []bomEntry{
		{[]byte{0x00, 0x00, 0xFE, 0xFF}, UCS4BE, UTF32Decoder{BigEndian: true}},
		{[]byte{0xFF, 0xFE, 0x00, 0x00}, UCS4LE, UTF32Decoder{BigEndian: false}},
		{[]byte{0xFE, 0xFF, 0x00, 0x00}, UCS4Transposed2301, UTF32Decoder{Order: &[4]int{2, 3, 0, 1}}},
		{[]byte{0x00, 0x00, 0xFF, 0xFE}, UCS4Transposed1032, UTF32Decoder{Order: &[4]int{1, 0, 3, 2}}},
	}
	for _, e := range entries {
		if n >= len(e.bytes) && matches(peek[:], e.bytes) {
			return e.name, e.dec, len(e.bytes), true
		}
	}
	if n >= 3 && matches(peek[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return UTF8, UTF8Decoder{}, 3, true
	}
	if n >= 2 && matches(peek[:2], []byte{0xFE, 0xFF}) {
		return UTF16BE, UTF16Decoder{BigEndian: true}, 2, true
	}
	if n >= 2 && matches(peek[:2], []byte{0xFF, 0xFE}) {
		return UTF16LE, UTF16Decoder{BigEndian: false}, 2, true
	}
	return "", nil, 0, false
}

func matches(got, want []byte) bool {
	if len(got) < len(want) {
		return false
	}
	for i, b := range want {
		if got[i] != b {
			return false
		}
	}
	return true
}

// matchFourBytePattern matches the no-BOM four-byte tentative-encoding
// table from the XML specification (spec.md §4.B.2).
func matchFourBytePattern(peek [4]byte, n int) (Name, Decoder, bool) {
	if n < 4 {
		return "", nil, false
	}
	switch {
	case matches(peek[:], []byte{0x00, 0x00, 0x00, 0x3C}):
		return UCS4BE, UTF32Decoder{BigEndian: true}, true
	case matches(peek[:], []byte{0x3C, 0x00, 0x00, 0x00}):
		return UCS4LE, UTF32Decoder{BigEndian: false}, true
	case matches(peek[:], []byte{0x00, 0x3C, 0x00, 0x3F}):
		return UTF16BE, UTF16Decoder{BigEndian: true}, true
	case matches(peek[:], []byte{0x3C, 0x00, 0x3F, 0x00}):
		return UTF16LE, UTF16Decoder{BigEndian: false}, true
	case matches(peek[:], []byte{0x3C, 0x3F, 0x78, 0x6D}):
		return UTF8, UTF8Decoder{}, true
	case matches(peek[:], []byte{0x4C, 0x6F, 0xA7, 0x94}):
		return EBCDIC37, EBCDIC37Decoder{}, true
	default:
		return "", nil, false
	}
}

var xmlDeclRE = regexp.MustCompile(`(?s)^\s*<\?xml\s+([^?]*)\?>`)
var encAttrRE = regexp.MustCompile(`encoding\s*=\s*["']([^"']+)["']`)
var metaTagRE = regexp.MustCompile(`(?i)<meta\b[^>]*>`)
var metaCharsetRE = regexp.MustCompile(`(?i)charset\s*=\s*["']?\s*([a-zA-Z0-9_\-]+)`)

// sniffDeclaration decodes a bounded prefix with the tentative decoder
// and looks for an explicit encoding (XML declaration) or a <meta
// charset> (HTML). If it finds one naming a different decoder, that
// decoder is returned instead of the tentative one.
func sniffDeclaration(tentativeName Name, tentative Decoder, isHTML bool, src io.ByteReader) (Name, Decoder) {
	runes := tentative.Decode(src, nil)
	var b strings.Builder
	for i := 0; i < maxSniffRunes; i++ {
		it, err := runes.Next()
		if err != nil || it.End {
			break
		}
		b.WriteRune(it.Value.R)
		if !isHTML && i > 8 && !strings.Contains(b.String(), "<?xml") {
			break
		}
	}
	prefix := b.String()

	var declared string
	if isHTML {
		for _, tag := range metaTagRE.FindAllString(prefix, -1) {
			if m := metaCharsetRE.FindStringSubmatch(tag); m != nil {
				declared = m[1]
				break
			}
		}
	} else if m := xmlDeclRE.FindStringSubmatch(prefix); m != nil {
		if em := encAttrRE.FindStringSubmatch(m[1]); em != nil {
			declared = em[1]
		}
	}

	if declared == "" {
		return tentativeName, tentative
	}
	if d, ok := ByName(declared); ok {
		return Name(declared), d
	}
	return tentativeName, tentative
}
