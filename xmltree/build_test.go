package xmltree

import (
	"testing"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(s core.Signal) core.Located { return core.Located{Signal: s} }

func TestBuild_SimpleTree(t *testing.T) {
	sig := stream.FromSlice([]core.Located{
		loc(core.StartElement(core.Name{Local: "root"}, []core.Attribute{{Name: core.Name{Local: "a"}, Value: "1"}})),
		loc(core.Text("hi")),
		loc(core.StartElement(core.Name{Local: "child"}, nil)),
		loc(core.EndElement(core.Name{Local: "child"})),
		loc(core.EndElement(core.Name{Local: "root"})),
	})

	doc, err := Build(sig)
	require.NoError(t, err)

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "root", root.Tag)
	assert.Equal(t, "1", root.SelectAttrValue("a", ""))
	assert.NotNil(t, root.SelectElement("child"))
}

func TestBuild_NamespacedElementGetsDefaultBinding(t *testing.T) {
	sig := stream.FromSlice([]core.Located{
		loc(core.StartElement(core.Name{Space: "urn:a", Local: "root"}, nil)),
		loc(core.EndElement(core.Name{Space: "urn:a", Local: "root"})),
	})

	doc, err := Build(sig)
	require.NoError(t, err)

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "root", root.Tag)
	assert.Equal(t, "urn:a", root.SelectAttrValue("xmlns", ""))
}

func TestBuild_UnclosedElementIsError(t *testing.T) {
	sig := stream.FromSlice([]core.Located{
		loc(core.StartElement(core.Name{Local: "root"}, nil)),
	})
	_, err := Build(sig)
	assert.Error(t, err)
}
