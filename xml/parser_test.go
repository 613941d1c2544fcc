package xml

import (
	"testing"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runesOf(s string) *stream.Stream[core.PositionedRune] {
	line, col := 1, 1
	items := make([]core.PositionedRune, 0, len(s))
	for _, r := range s {
		items = append(items, core.PositionedRune{Loc: core.Location{Line: line, Column: col}, R: r})
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return stream.FromSlice(items)
}

func drainSignals(t *testing.T, s *stream.Stream[core.Located]) []core.Signal {
	t.Helper()
	var out []core.Signal
	for {
		it, err := s.Next()
		require.NoError(t, err)
		if it.End {
			return out
		}
		out = append(out, it.Value.Signal)
	}
}

func TestParser_SimpleDocument(t *testing.T) {
	s := Parse(runesOf(`<root a="1">hi</root>`), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 3)
	assert.Equal(t, core.KindStartElement, sig[0].Kind)
	assert.Equal(t, "root", sig[0].Name.Local)
	assert.Equal(t, "1", sig[0].Attr[0].Value)
	assert.Equal(t, core.KindText, sig[1].Kind)
	assert.Equal(t, "hi", sig[1].String())
	assert.Equal(t, core.KindEndElement, sig[2].Kind)
}

func TestParser_SelfClosingElement(t *testing.T) {
	s := Parse(runesOf(`<root><br/></root>`), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 4)
	assert.Equal(t, "br", sig[1].Name.Local)
	assert.Equal(t, core.KindEndElement, sig[2].Kind)
	assert.Equal(t, "br", sig[2].Name.Local)
}

func TestParser_NamespaceResolution(t *testing.T) {
	s := Parse(runesOf(`<r xmlns="urn:a" xmlns:b="urn:b"><b:x/></r>`), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 4)
	assert.Equal(t, "urn:a", sig[0].Name.Space)
	assert.Equal(t, "urn:b", sig[1].Name.Space)
	assert.Equal(t, "x", sig[1].Name.Local)
}

func TestParser_BuiltinEntities(t *testing.T) {
	s := Parse(runesOf(`<r>a &amp; b &lt; c</r>`), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 3)
	assert.Equal(t, "a & b < c", sig[1].String())
}

func TestParser_NumericEntity(t *testing.T) {
	s := Parse(runesOf(`<r>&#65;&#x42;</r>`), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	assert.Equal(t, "AB", sig[1].String())
}

func TestParser_UnmatchedEndTagReported(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<r></s></r>`), opts, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 2)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.UnmatchedEndTag{}, errs[0])
}

func TestParser_UnclosedStartTagAtEOF(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<r><a>`), opts, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 4)
	assert.Equal(t, core.KindEndElement, sig[2].Kind)
	assert.Equal(t, "a", sig[2].Name.Local)
	assert.Equal(t, core.KindEndElement, sig[3].Kind)
	assert.Equal(t, "r", sig[3].Name.Local)
	require.Len(t, errs, 2)
}

func TestParser_DoctypeAndComment(t *testing.T) {
	s := Parse(runesOf("<!DOCTYPE root PUBLIC \"-//X\" \"y.dtd\"><!--hi--><root/>"), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 4)
	assert.Equal(t, core.KindDoctype, sig[0].Kind)
	assert.Equal(t, "root", sig[0].Doctype.Name)
	assert.Equal(t, "-//X", sig[0].Doctype.Public)
	assert.Equal(t, "y.dtd", sig[0].Doctype.System)
	assert.Equal(t, core.KindComment, sig[1].Kind)
	assert.Equal(t, "hi", sig[1].CommentBody)
}

func TestParser_XMLDeclarationMustBeFirst(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<!--c--><?xml version="1.0"?><root/>`), opts, core.Document)
	sig := drainSignals(t, s)
	require.Len(t, sig, 3)
	assert.Equal(t, core.KindComment, sig[0].Kind)
	assert.Equal(t, core.KindStartElement, sig[1].Kind)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.BadDocument{}, errs[0])
}

func TestParser_MultipleRootsReported(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<a/><b/>`), opts, core.Document)
	drainSignals(t, s)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.BadDocument{}, errs[0])
}

func TestParser_FragmentContext(t *testing.T) {
	s := Parse(runesOf(`hello <b>world</b>`), core.Options{}, core.Fragment("div"))
	sig := drainSignals(t, s)
	require.Len(t, sig, 4)
	assert.Equal(t, "hello ", sig[0].String())
	assert.Equal(t, "b", sig[1].Name.Local)
	assert.Equal(t, "world", sig[2].String())
	assert.Equal(t, core.KindEndElement, sig[3].Kind)
}
