package parser

import (
	"testing"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignorePos = cmpopts.IgnoreTypes(ast.Pos{})

func name(s string) *ast.NameSeg { return &ast.NameSeg{Name: s} }

func descend(parent ast.Path, child ast.Path) *ast.DescendSeg {
	return &ast.DescendSeg{Parent: parent, Child: child}
}

func ref(p ast.Path) *ast.VarRef { return &ast.VarRef{Path: p} }

func TestParseCommands(t *testing.T) {
	src := `<p><?cs var:page.title ?></p><?cs # ignored ?>` +
		`<?cs each:item = page.items ?><?cs name:item ?><?cs /each ?>` +
		`<?cs set:count = count + 1 ?>`
	tmpl, err := Parse("page.cs", src)
	require.NoError(t, err)

	want := []ast.Command{
		&ast.DataChunk{Text: "<p>"},
		&ast.Var{X: ref(descend(name("page"), name("title")))},
		&ast.DataChunk{Text: "</p>"},
		&ast.Each{
			Alias: "item",
			Over:  ref(descend(name("page"), name("items"))),
			Body:  []ast.Command{&ast.Name{Target: name("item")}},
		},
		&ast.Set{
			Target: name("count"),
			Value:  &ast.Binary{Op: ast.NumAdd, X: ref(name("count")), Y: &ast.DecimalLit{Text: "1"}},
		},
	}
	if diff := cmp.Diff(want, tmpl.Body, ignorePos); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "page.cs", tmpl.Name)
}

func TestParseElifDesugars(t *testing.T) {
	tmpl, err := Parse("t", `<?cs if:a ?>A<?cs elif:b ?>B<?cs else ?>C<?cs /if ?>`)
	require.NoError(t, err)

	want := []ast.Command{&ast.If{
		Cond: ref(name("a")),
		Then: []ast.Command{&ast.DataChunk{Text: "A"}},
		Else: []ast.Command{&ast.If{
			Cond: ref(name("b")),
			Then: []ast.Command{&ast.DataChunk{Text: "B"}},
			Else: []ast.Command{&ast.DataChunk{Text: "C"}},
		}},
	}}
	if diff := cmp.Diff(want, tmpl.Body, ignorePos); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLoopForms(t *testing.T) {
	tmpl, err := Parse("t", `<?cs loop:i = 3 ?><?cs /loop ?><?cs loop:i = 1, 3 ?><?cs /loop ?><?cs loop:i = 5, 1, -2 ?><?cs /loop ?>`)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 3)

	l1 := tmpl.Body[0].(*ast.Loop)
	assert.Nil(t, l1.Start)
	assert.Nil(t, l1.Step)
	assert.Equal(t, "3", ast.FormatExpr(l1.End))

	l2 := tmpl.Body[1].(*ast.Loop)
	assert.Equal(t, "1", ast.FormatExpr(l2.Start))
	assert.Nil(t, l2.Step)

	l3 := tmpl.Body[2].(*ast.Loop)
	assert.Equal(t, "-2", ast.FormatExpr(l3.Step))
}

func TestParseDefAndCall(t *testing.T) {
	tmpl, err := Parse("t", `<?cs call:nav.link("/", title) ?><?cs def:nav.link(url, text) ?><?cs var:text ?><?cs /def ?>`)
	require.NoError(t, err)

	want := []ast.Command{
		&ast.Call{Name: "nav.link", Args: []ast.Expr{&ast.StringLit{Value: "/"}, ref(name("title"))}},
		&ast.Def{Name: "nav.link", Params: []string{"url", "text"}, Body: []ast.Command{&ast.Var{X: ref(name("text"))}}},
	}
	if diff := cmp.Diff(want, tmpl.Body, ignorePos); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExprForms(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`a.b.3`, `a.b.3`},
		{`a[b.c].d`, `a[b.c].d`},
		{`"5" == "05"`, `("5" == "05")`},
		{`#x == 5`, `(#x #== 5)`},
		{`x == 0x10`, `(x #== 0x10)`},
		{`a + "s"`, `(a + "s")`},
		{`a - 1 + b`, `((a - 1) #+ b)`},
		{`1 + 2 * 3`, `(1 #+ (2 * 3))`},
		{`!a || b && c`, `(!a || (b && c))`},
		{`?a.b`, `?a.b`},
		{`string.slice(s, 0, 3)`, `string.slice(s, 0, 3)`},
		{`(a || b) && c`, `((a || b) && c)`},
		{`'it\'s'`, `"it's"`},
		{`x <= 2`, `(x <= 2)`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			x, err := ParseExpr(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.FormatExpr(x))
		})
	}
}

func TestParseStringWithCloseTag(t *testing.T) {
	tmpl, err := Parse("t", `<?cs var:"a ?> b" ?>tail`)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 2)
	assert.Equal(t, `"a ?> b"`, ast.FormatExpr(tmpl.Body[0].(*ast.Var).X))
	assert.Equal(t, "tail", tmpl.Body[1].(*ast.DataChunk).Text)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
	}{
		{"unterminated command", "ab\n<?cs var:x", 2, 1},
		{"missing end", "<?cs if:x ?>", 1, 1},
		{"mismatched end", "<?cs each:i = x ?>\n<?cs /if ?>", 2, 1},
		{"stray end", "x<?cs /each ?>", 1, 2},
		{"unknown command", "<?cs bogus:x ?>", 1, 1},
		{"bad expression", "<?cs var:a + ?>", 1, 14},
		{"too many bounds", "<?cs loop:i = 1, 2, 3, 4 ?><?cs /loop ?>", 1, 1},
		{"escape needs string", "<?cs escape:html ?><?cs /escape ?>", 1, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("t.cs", tt.src)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Pos.Line, perr.Error())
			assert.Equal(t, tt.col, perr.Pos.Col, perr.Error())
			assert.Equal(t, "t.cs", perr.Pos.Name)
		})
	}
}

func TestParsePositions(t *testing.T) {
	tmpl, err := Parse("t.cs", "line1\n  <?cs var:x ?>")
	require.NoError(t, err)
	assert.Equal(t, ast.Pos{Name: "t.cs", Line: 2, Col: 3}, tmpl.Body[1].Pos())
}
