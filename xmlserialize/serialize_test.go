package xmlserialize

import (
	"strings"
	"testing"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, sig []core.Located) string {
	t.Helper()
	var b strings.Builder
	err := Write(&b, stream.FromSlice(sig), core.Options{})
	require.NoError(t, err)
	return b.String()
}

func loc(s core.Signal) core.Located { return core.Located{Signal: s} }

func TestWrite_SimpleElement(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Local: "root"}, []core.Attribute{{Name: core.Name{Local: "a"}, Value: "1"}})),
		loc(core.Text("hi")),
		loc(core.EndElement(core.Name{Local: "root"})),
	})
	assert.Equal(t, `<root a="1">hi</root>`, out)
}

func TestWrite_TextEscaping(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Local: "r"}, nil)),
		loc(core.Text("a < b & c")),
		loc(core.EndElement(core.Name{Local: "r"})),
	})
	assert.Equal(t, `<r>a &lt; b &amp; c</r>`, out)
}

func TestWrite_NamespaceDeclaration(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Space: "urn:a", Local: "root"}, nil)),
		loc(core.StartElement(core.Name{Space: "urn:b", Local: "child"}, nil)),
		loc(core.EndElement(core.Name{Space: "urn:b", Local: "child"})),
		loc(core.EndElement(core.Name{Space: "urn:a", Local: "root"})),
	})
	assert.Contains(t, out, `xmlns="urn:a"`)
	assert.Contains(t, out, `xmlns:ns0="urn:b"`)
	assert.Contains(t, out, `<ns0:child`)
	assert.Contains(t, out, `</ns0:child>`)
}

func TestWrite_UnbalancedStreamSynthesizesMissingEndElements(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	var b strings.Builder
	sig := []core.Located{
		loc(core.StartElement(core.Name{Local: "root"}, nil)),
		loc(core.StartElement(core.Name{Local: "child"}, nil)),
		loc(core.Text("hi")),
	}
	err := Write(&b, stream.FromSlice(sig), opts)
	require.NoError(t, err)
	assert.Equal(t, `<root><child>hi</child></root>`, b.String())
	require.Len(t, errs, 1)
	assert.IsType(t, &core.UnexpectedEOI{}, errs[0])
}

func TestWrite_XMLDeclarationAndDoctype(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.Signal{Kind: core.KindXMLDeclaration, XMLDecl: core.XMLDeclaration{Version: "1.0", Encoding: "UTF-8", HasEncoding: true}}),
		loc(core.Signal{Kind: core.KindDoctype, Doctype: core.Doctype{Name: "root", HasName: true}}),
		loc(core.StartElement(core.Name{Local: "root"}, nil)),
		loc(core.EndElement(core.Name{Local: "root"})),
	})
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><!DOCTYPE root><root></root>`, out)
}
