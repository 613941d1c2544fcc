package encoding

// ebcdic037Table maps each EBCDIC (IBM code page 037, US/Canada) byte to
// its Unicode code point. It covers the letters, digits and the common
// punctuation that differ from ASCII ordering; bytes this module has no
// authoritative mapping for (mostly the control-character range, which
// CP037 reorders relative to ASCII/ISO-646 in ways not worth chasing for
// this exercise) fall back to their own byte value. This is a documented
// approximation, not a certified CP037 table.
var ebcdic037Table = func() [256]rune {
	var t [256]rune
	for i := range t {
		t[i] = rune(i)
	}
	overrides := map[byte]rune{
		0x40: ' ',
		0x4B: '.',
		0x4C: '<',
		0x4D: '(',
		0x4E: '+',
		0x4F: '|',
		0x50: '&',
		0x5A: '!',
		0x5B: '$',
		0x5C: '*',
		0x5D: ')',
		0x5E: ';',
		0x5F: '^',
		0x60: '-',
		0x61: '/',
		0x6B: ',',
		0x6C: '%',
		0x6D: '_',
		0x6E: '>',
		0x6F: '?',
		0x79: '`',
		0x7A: ':',
		0x7B: '#',
		0x7C: '@',
		0x7D: '\'',
		0x7E: '=',
		0x7F: '"',
		0xC0: '{',
		0xD0: '}',
		0xE0: '\\',
	}
	for b, r := range overrides {
		t[b] = r
	}
	for i, c := 0, byte('a'); c <= 'i'; i, c = i+1, c+1 {
		t[0x81+i] = rune(c)
	}
	for i, c := 0, byte('j'); c <= 'r'; i, c = i+1, c+1 {
		t[0x91+i] = rune(c)
	}
	for i, c := 0, byte('s'); c <= 'z'; i, c = i+1, c+1 {
		t[0xA2+i] = rune(c)
	}
	for i, c := 0, byte('A'); c <= 'I'; i, c = i+1, c+1 {
		t[0xC1+i] = rune(c)
	}
	for i, c := 0, byte('J'); c <= 'R'; i, c = i+1, c+1 {
		t[0xD1+i] = rune(c)
	}
	for i, c := 0, byte('S'); c <= 'Z'; i, c = i+1, c+1 {
		t[0xE2+i] = rune(c)
	}
	for i, c := 0, byte('0'); c <= '9'; i, c = i+1, c+1 {
		t[0xF0+i] = rune(c)
	}
	return t
}()
