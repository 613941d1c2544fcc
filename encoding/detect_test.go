package encoding

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllRunes(t *testing.T, dec Decoder, r io.ByteReader) string {
	t.Helper()
	s := dec.Decode(r, nil)
	var out []rune
	for {
		it, err := s.Next()
		require.NoError(t, err)
		if it.End {
			break
		}
		out = append(out, it.Value.R)
	}
	return string(out)
}

func TestDetect_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("<r/>")...)
	dec, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, UTF8, name)
	assert.Equal(t, "<r/>", readAllRunes(t, dec, r))
}

func TestDetect_UTF16LEBOM(t *testing.T) {
	input := []byte{0xFF, 0xFE, '<', 0, 'r', 0, '/', 0, '>', 0}
	dec, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, UTF16LE, name)
	assert.Equal(t, "<r/>", readAllRunes(t, dec, r))
}

func TestDetect_DefaultsToUTF8ForXML(t *testing.T) {
	input := []byte("<r>hi</r>")
	dec, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, UTF8, name)
	assert.Equal(t, "<r>hi</r>", readAllRunes(t, dec, r))
}

func TestDetect_DefaultsToWindows1252ForHTML(t *testing.T) {
	input := []byte("<p>hi</p>")
	_, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Windows1252, name)
	_ = r
}

func TestDetect_XMLDeclarationEncodingSwitch(t *testing.T) {
	// Starts tentatively as UTF-8 (no BOM), declares ISO-8859-1, then a
	// single 0xE9 byte that is only valid Latin-1, not UTF-8.
	input := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><r>`), 0xE9)
	input = append(input, []byte("</r>")...)
	dec, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Name("ISO-8859-1"), name)
	out := readAllRunes(t, dec, r)
	assert.Contains(t, out, "é")
	assert.Contains(t, out, `encoding="ISO-8859-1"`)
}

func TestDetect_HTMLMetaCharsetSwitch(t *testing.T) {
	input := []byte(`<html><head><meta charset="windows-1251"></head><body></body></html>`)
	dec, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Name("windows-1251"), name)
	out := readAllRunes(t, dec, r)
	assert.Contains(t, out, "<meta charset")
}

func TestDetect_LogsDebugOnDeclarationSwitch(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	input := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><r>`), 0xE9)
	input = append(input, []byte("</r>")...)
	_, _, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), false, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, Name("ISO-8859-1"), name)
	assert.Contains(t, logBuf.String(), "decoder fallback chosen")
}

func TestDetect_ExplicitDecoderBypassesSniffing(t *testing.T) {
	input := []byte{0xE9}
	dec, r, name, err := Detect(bufio.NewReader(bytes.NewReader(input)), false, CharmapDecoder{Name: Latin1}, nil)
	require.NoError(t, err)
	assert.Equal(t, Name(""), name)
	assert.Equal(t, "é", readAllRunes(t, dec, r))
}
