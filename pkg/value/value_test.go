package value

import (
	"testing"

	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/stretchr/testify/assert"
)

type treeResolver struct {
	root *data.Node
}

func (r treeResolver) Lookup(name string) *data.Node { return r.root.Get(name) }

func (r treeResolver) LoopState(string) (bool, bool, bool) { return false, false, false }

func TestScalars(t *testing.T) {
	assert.Equal(t, 42, String("0x2a").Int())
	assert.False(t, String("").Bool())
	assert.True(t, String("abc").Bool())
	assert.False(t, String("0").Bool())
	assert.Equal(t, escape.ModeNone, String("x").EscapeMode())
	assert.Equal(t, escape.ModeHTML, Literal("&amp;", escape.ModeHTML).EscapeMode())

	assert.Equal(t, "-7", Int(-7).String())
	assert.True(t, Int(2).Bool())
	assert.Equal(t, "1", Bool(true).String())
	assert.Equal(t, 0, Bool(false).Int())
	assert.Equal(t, escape.ModeConstant, Int(1).EscapeMode())
}

func TestVariableIsLive(t *testing.T) {
	root := data.New()
	v := Var(treeResolver{root}, "a.b")

	assert.False(t, v.Exists())
	assert.True(t, v.IsEmpty())
	assert.Equal(t, escape.ModeNone, v.EscapeMode())

	root.Set("a.b", "12").SetEscapeMode(escape.ModeURL)
	assert.True(t, v.Exists())
	assert.Equal(t, 12, v.Int())
	assert.Equal(t, "12", v.String())
	assert.Equal(t, escape.ModeURL, v.EscapeMode())
	assert.Equal(t, "a.b", v.Name())
}
