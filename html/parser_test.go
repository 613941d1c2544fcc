package html

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

func names(sig []core.Signal) []string {
	var out []string
	for _, s := range sig {
		switch s.Kind {
		case core.KindStartElement:
			out = append(out, "S:"+s.Name.Local)
		case core.KindEndElement:
			out = append(out, "E:"+s.Name.Local)
		case core.KindText:
			out = append(out, "T:"+s.String())
		case core.KindDoctype:
			out = append(out, "D:"+s.Doctype.Name)
		case core.KindComment:
			out = append(out, "C:"+s.CommentBody)
		}
	}
	return out
}

func TestParser_ImplicitHeadAndBody(t *testing.T) {
	s := Parse(runesOf(`<!DOCTYPE html><p>hi</p>`), core.Options{}, core.Document)
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"D:html", "S:html", "S:head", "E:head", "S:body", "S:p", "T:hi", "E:p", "E:body", "E:html"}, got)
}

func TestParser_VoidElementNoEndTag(t *testing.T) {
	s := Parse(runesOf(`<p>one<br>two</p>`), core.Options{}, core.Fragment("body"))
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:p", "T:one", "S:br", "E:br", "T:two", "E:p", "E:body"}, got)
}

func TestParser_ParagraphAutoClose(t *testing.T) {
	s := Parse(runesOf(`<p>one<p>two`), core.Options{}, core.Fragment("body"))
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:p", "T:one", "E:p", "S:p", "T:two", "E:p", "E:body"}, got)
}

func TestParser_RawTextScript(t *testing.T) {
	s := Parse(runesOf(`<script>if (a < b) {}</script>after`), core.Options{}, core.Fragment("body"))
	sig := drainSignals(t, s)
	require.Len(t, sig, 5)
	assert.Equal(t, "script", sig[0].Name.Local)
	assert.Equal(t, "if (a < b) {}", sig[1].String())
	assert.Equal(t, core.KindEndElement, sig[2].Kind)
	assert.Equal(t, "after", sig[3].String())
}

func TestParser_NamedEntity(t *testing.T) {
	s := Parse(runesOf(`<p>a &amp; b &copy;</p>`), core.Options{}, core.Fragment("body"))
	sig := drainSignals(t, s)
	require.Len(t, sig, 4)
	assert.Equal(t, "a & b ©", sig[1].String())
}

func TestParser_SVGForeignNamespace(t *testing.T) {
	s := Parse(runesOf(`<svg><circle/></svg>`), core.Options{}, core.Fragment("body"))
	sig := drainSignals(t, s)
	require.Len(t, sig, 5)
	assert.Equal(t, svgNS, sig[0].Name.Space)
	assert.Equal(t, svgNS, sig[1].Name.Space)
	assert.Equal(t, "circle", sig[1].Name.Local)
}

func TestParser_TableFosterParenting(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<table>stray<tr><td>cell</td></tr></table>`), opts, core.Fragment("body"))
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:table", "S:tr", "S:td", "T:cell", "E:td", "E:tr", "E:table", "E:body"}, got)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.BadContent{}, errs[0])
}

func TestParser_ForeignContentBreaksOutOnHTMLElement(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<svg><g><p>x</svg>`), opts, core.Fragment("body"))
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:svg", "S:g", "E:g", "E:svg", "S:p", "T:x", "E:p", "E:body"}, got)
	assert.Equal(t, svgNS, sig[0].Name.Space)
	assert.Equal(t, svgNS, sig[1].Name.Space)
	assert.Equal(t, "", sig[4].Name.Space)
	require.NotEmpty(t, errs)
	mis, ok := errs[0].(*core.MisnestedTag)
	require.True(t, ok)
	assert.Equal(t, "p", mis.What)
	assert.Equal(t, "g", mis.Where)
}

func TestParser_MisnestedFormattingElementReopens(t *testing.T) {
	s := Parse(runesOf(`<p>1<b>2<i>3</b>4</i>5</p>`), core.Options{}, core.Fragment("body"))
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{
		"S:p", "T:1", "S:b", "T:2", "S:i", "T:3", "E:i", "E:b",
		"S:i", "T:4", "E:i", "T:5", "E:p", "E:body",
	}, got)
}

func TestParser_UnmatchedEndTagInBody(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	s := Parse(runesOf(`<p>hi</div>`), opts, core.Fragment("body"))
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:p", "T:hi", "E:p", "E:body"}, got)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.UnmatchedEndTag{}, errs[0])
}

func TestParser_FragmentContextAutoDetectedFromOrphanTag(t *testing.T) {
	s := Parse(runesOf(`<td>x</td>`), core.Options{}, core.Context{})
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:td", "T:x", "E:td", "E:tr"}, got)
}

func TestParser_NoFragmentAutoDetectionForOrdinaryDocument(t *testing.T) {
	s := Parse(runesOf(`<p>hi</p>`), core.Options{}, core.Context{})
	sig := drainSignals(t, s)
	got := names(sig)
	assert.Equal(t, []string{"S:html", "S:head", "E:head", "S:body", "S:p", "T:hi", "E:p", "E:body", "E:html"}, got)
}
