package encoding

// Name identifies one of the decoders this package implements. Detect
// returns one of these; Options.Decoder can be built from one directly
// with ByName.
type Name string

const (
	UTF8              Name = "UTF-8"
	UTF16BE           Name = "UTF-16BE"
	UTF16LE           Name = "UTF-16LE"
	UCS4BE            Name = "UCS-4BE"
	UCS4LE            Name = "UCS-4LE"
	UCS4Transposed2301 Name = "UCS-4(2301)"
	UCS4Transposed1032 Name = "UCS-4(1032)"
	Latin1            Name = "ISO-8859-1"
	Windows1252       Name = "Windows-1252"
	Windows1251       Name = "Windows-1251"
	ASCII             Name = "US-ASCII"
	EBCDIC37          Name = "EBCDIC-037"
)

// ByName returns the built-in Decoder for a charset name, trying the
// canonical Name values first and then a handful of common aliases seen
// in XML encoding declarations and HTML meta charsets.
func ByName(name string) (Decoder, bool) {
	switch normalizeCharsetName(name) {
	case "utf-8", "utf8":
		return UTF8Decoder{}, true
	case "utf-16be":
		return UTF16Decoder{BigEndian: true}, true
	case "utf-16le":
		return UTF16Decoder{BigEndian: false}, true
	case "utf-16":
		// Ambiguous without a BOM; default to big-endian per the Unicode
		// standard's guidance for unmarked UTF-16.
		return UTF16Decoder{BigEndian: true}, true
	case "ucs-4be", "utf-32be":
		return UTF32Decoder{BigEndian: true}, true
	case "ucs-4le", "utf-32le":
		return UTF32Decoder{BigEndian: false}, true
	case "iso-8859-1", "latin1", "latin-1":
		return CharmapDecoder{Name: Latin1}, true
	case "windows-1252", "cp1252":
		return CharmapDecoder{Name: Windows1252}, true
	case "windows-1251", "cp1251":
		return CharmapDecoder{Name: Windows1251}, true
	case "us-ascii", "ascii":
		return ASCIIDecoder{}, true
	case "ebcdic-cp-us", "ebcdic-037", "cp037", "ibm037":
		return EBCDIC37Decoder{}, true
	default:
		return nil, false
	}
}

func normalizeCharsetName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
