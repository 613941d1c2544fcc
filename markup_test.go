package markup

import (
	"strings"
	"testing"

	"github.com/gomarkup/markup/stream"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXML_RoundTrip(t *testing.T) {
	in := `<root a="1">hello <b>world</b></root>`
	sig := ParseXML(strings.NewReader(in), Options{})
	var out strings.Builder
	require.NoError(t, WriteXML(&out, sig, Options{}))
	assert.Equal(t, `<root a="1">hello <b>world</b></root>`, out.String())
}

func TestParseHTML_ImplicitStructure(t *testing.T) {
	in := `<!DOCTYPE html><title>T</title><p>hi`
	sig := ParseHTML(strings.NewReader(in), Options{})
	var out strings.Builder
	require.NoError(t, WriteHTML(&out, sig, Options{}))
	assert.Contains(t, out.String(), "<!DOCTYPE html>")
	assert.Contains(t, out.String(), "<html>")
	assert.Contains(t, out.String(), "<head>")
	assert.Contains(t, out.String(), "<title>T</title>")
	assert.Contains(t, out.String(), "<body>")
	assert.Contains(t, out.String(), "<p>hi</p>")
}

func TestParseXML_SignalsSurviveRoundTrip(t *testing.T) {
	in := `<root a="1"><child>text</child></root>`

	first, err := stream.ToSlice(ParseXML(strings.NewReader(in), Options{}))
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, WriteXML(&out, ParseXML(strings.NewReader(in), Options{}), Options{}))

	second, err := stream.ToSlice(ParseXML(strings.NewReader(out.String()), Options{}))
	require.NoError(t, err)

	firstSignals := make([]Signal, len(first))
	for i, l := range first {
		firstSignals[i] = l.Signal
	}
	secondSignals := make([]Signal, len(second))
	for i, l := range second {
		secondSignals[i] = l.Signal
	}

	if diff := cmp.Diff(firstSignals, secondSignals); diff != "" {
		t.Errorf("signals changed across a serialize/reparse round trip (-first +second):\n%s", diff)
	}
}

func TestParseXML_ErrorRecoveryReportsAndContinues(t *testing.T) {
	var errs []error
	opts := Options{Report: func(_ Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	in := `<r></mismatch><a/></r>`
	sig := ParseXML(strings.NewReader(in), opts)
	var out strings.Builder
	require.NoError(t, WriteXML(&out, sig, Options{}))
	require.NotEmpty(t, errs)
}
