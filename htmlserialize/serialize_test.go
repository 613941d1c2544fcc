package htmlserialize

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

func TestWrite_VoidElementNoClosingTag(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Local: "p"}, nil)),
		loc(core.Text("a")),
		loc(core.StartElement(core.Name{Local: "br"}, nil)),
		loc(core.EndElement(core.Name{Local: "br"})),
		loc(core.Text("b")),
		loc(core.EndElement(core.Name{Local: "p"})),
	})
	assert.Equal(t, `<p>a<br>b</p>`, out)
}

func TestWrite_TextEscaping(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Local: "p"}, nil)),
		loc(core.Text("a < b & c")),
		loc(core.EndElement(core.Name{Local: "p"})),
	})
	assert.Equal(t, `<p>a &lt; b &amp; c</p>`, out)
}

func TestWrite_RawTextNotEscaped(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Local: "script"}, nil)),
		loc(core.Text("if (a < b) {}")),
		loc(core.EndElement(core.Name{Local: "script"})),
	})
	assert.Equal(t, `<script>if (a < b) {}</script>`, out)
}

func TestWrite_AttributeQuotingMinimized(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.StartElement(core.Name{Local: "input"}, []core.Attribute{
			{Name: core.Name{Local: "type"}, Value: "text"},
			{Name: core.Name{Local: "value"}, Value: "a b"},
			{Name: core.Name{Local: "disabled"}, Value: ""},
			{Name: core.Name{Local: "checked"}, Value: "checked"},
		})),
		loc(core.EndElement(core.Name{Local: "input"})),
	})
	assert.Equal(t, `<input type=text value="a b" disabled checked>`, out)
}

func TestWrite_VoidElementContentReportsBadContent(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	var b strings.Builder
	err := Write(&b, stream.FromSlice([]core.Located{
		loc(core.StartElement(core.Name{Local: "br"}, nil)),
		loc(core.Text("stray")),
		loc(core.EndElement(core.Name{Local: "br"})),
	}), opts)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.BadContent{}, errs[0])
}

func TestWrite_RawTextClosingSequenceReportsBadContent(t *testing.T) {
	var errs []error
	opts := core.Options{Report: func(_ core.Location, err error) error {
		errs = append(errs, err)
		return nil
	}}
	var b strings.Builder
	err := Write(&b, stream.FromSlice([]core.Located{
		loc(core.StartElement(core.Name{Local: "script"}, nil)),
		loc(core.Text("var x = '</script>';")),
		loc(core.EndElement(core.Name{Local: "script"})),
	}), opts)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.IsType(t, &core.BadContent{}, errs[0])
}

func TestWrite_Doctype(t *testing.T) {
	out := write(t, []core.Located{
		loc(core.Signal{Kind: core.KindDoctype, Doctype: core.Doctype{Name: "html", HasName: true}}),
		loc(core.StartElement(core.Name{Local: "html"}, nil)),
		loc(core.EndElement(core.Name{Local: "html"})),
	})
	assert.Equal(t, `<!DOCTYPE html><html></html>`, out)
}
