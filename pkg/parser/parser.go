/*
Package parser reads template source into an ast.Template.

Templates are text with embedded commands in ClearSilver syntax:

	<?cs var:page.title ?>
	<?cs each:item = page.items ?><li><?cs var:item.name ?></li><?cs /each ?>
	<?cs if:user.admin ?>...<?cs elif:user.guest ?>...<?cs else ?>...<?cs /if ?>
	<?cs loop:i = 1, 10, 2 ?>...<?cs /loop ?>
	<?cs def:link(url, text) ?><a href="<?cs var:url ?>"><?cs var:text ?></a><?cs /def ?>
	<?cs call:link("/", "home") ?>
	<?cs # a comment ?>

The parser resolves + == != to their numeric forms when an operand is
numeric: a number literal, #x, -x, or arithmetic.
*/
package parser

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
)

var errUnterminatedString = errors.New("unterminated string literal")

// Error is a syntax error.
type Error struct {
	Pos ast.Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

const (
	openTag  = "<?cs"
	closeTag = "?>"
)

type itemKind int

const (
	itemText itemKind = iota
	itemCommand
)

// item is a piece of template source: literal text or one command.
type item struct {
	kind    itemKind
	text    string // literal text
	keyword string // command keyword, e.g. "var", "/if"
	args    string // text after "keyword:"
	off     int    // offset of the item
	argsOff int    // offset of args
}

type parser struct {
	name  string
	src   string
	lines []int
	items []item
	next  int
}

// Parse parses src as the template called name.
func Parse(name, src string) (*ast.Template, error) {
	p := newParser(name, src)
	if err := p.scan(); err != nil {
		return nil, err
	}
	body, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if end != nil {
		return nil, p.errorf(end.off, "unexpected %q", end.keyword)
	}
	return &ast.Template{Name: name, Body: body}, nil
}

// ParseExpr parses a single expression.
func ParseExpr(src string) (ast.Expr, error) {
	p := newParser("", src)
	toks, err := p.lex(src, 0)
	if err != nil {
		return nil, err
	}
	e := &exprParser{p: p, toks: toks}
	x, err := e.parseExpr()
	if err != nil {
		return nil, err
	}
	return x, e.expectEOF()
}

func newParser(name, src string) *parser {
	p := &parser{name: name, src: src, lines: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			p.lines = append(p.lines, i+1)
		}
	}
	return p
}

func (p *parser) position(off int) ast.Pos {
	line := sort.Search(len(p.lines), func(i int) bool { return p.lines[i] > off }) - 1
	return ast.Pos{Name: p.name, Line: line + 1, Col: off - p.lines[line] + 1}
}

func (p *parser) errorf(off int, format string, args ...any) error {
	return &Error{Pos: p.position(off), Msg: fmt.Sprintf(format, args...)}
}

// scan splits the source into text and command items.
func (p *parser) scan() error {
	src := p.src
	i := 0
	for i < len(src) {
		start := strings.Index(src[i:], openTag)
		if start < 0 {
			p.items = append(p.items, item{kind: itemText, text: src[i:], off: i})
			break
		}
		start += i
		if start > i {
			p.items = append(p.items, item{kind: itemText, text: src[i:start], off: i})
		}

		bodyOff := start + len(openTag)
		end, err := p.findClose(bodyOff)
		if err != nil {
			return err
		}
		it, ok := p.splitCommand(start, bodyOff, end)
		if ok {
			p.items = append(p.items, it)
		}
		i = end + len(closeTag)
	}
	return nil
}

// findClose returns the offset of the "?>" closing the command whose body
// starts at off, skipping over string literals.
func (p *parser) findClose(off int) (int, error) {
	src := p.src
	var quote byte
	for i := off; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(src[i:], closeTag):
			return i, nil
		}
	}
	return 0, p.errorf(off-len(openTag), "unterminated command")
}

// splitCommand breaks the command text in src[bodyOff:end] into keyword and
// arguments. Comments report ok == false.
func (p *parser) splitCommand(start, bodyOff, end int) (item, bool) {
	body := p.src[bodyOff:end]
	trimmed := strings.TrimLeft(body, " \t\r\n")
	lead := len(body) - len(trimmed)
	if strings.HasPrefix(trimmed, "#") {
		return item{}, false
	}
	k := 0
	for k < len(trimmed) && (trimmed[k] == '/' || isIdentByte(trimmed[k])) {
		k++
	}
	it := item{kind: itemCommand, keyword: trimmed[:k], off: start}
	rest := trimmed[k:]
	restOff := bodyOff + lead + k
	if strings.HasPrefix(rest, ":") {
		it.args = rest[1:]
		it.argsOff = restOff + 1
	} else {
		it.args = rest
		it.argsOff = restOff
	}
	return it, true
}

// parseBlock parses items until a terminating keyword (/x, else, elif) or the
// end of input, and returns the terminator item, or nil at end of input.
func (p *parser) parseBlock() ([]ast.Command, *item, error) {
	var cmds []ast.Command
	for p.next < len(p.items) {
		it := &p.items[p.next]
		p.next++
		if it.kind == itemText {
			cmds = append(cmds, &ast.DataChunk{Loc: p.position(it.off), Text: it.text})
			continue
		}
		switch it.keyword {
		case "else", "elif", "elseif":
			return cmds, it, nil
		}
		if strings.HasPrefix(it.keyword, "/") {
			return cmds, it, nil
		}
		cmd, err := p.parseCommand(it)
		if err != nil {
			return nil, nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil, nil
}

// parseBody parses a block that must end with "/"+keyword.
func (p *parser) parseBody(open *item) ([]ast.Command, error) {
	body, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, p.errorf(open.off, "missing /%s", open.keyword)
	}
	if end.keyword != "/"+open.keyword {
		return nil, p.errorf(end.off, "unexpected %q in %s", end.keyword, open.keyword)
	}
	return body, nil
}

func (p *parser) parseCommand(it *item) (ast.Command, error) {
	toks, err := p.lex(it.args, it.argsOff)
	if err != nil {
		return nil, err
	}
	e := &exprParser{p: p, toks: toks}
	loc := p.position(it.off)

	switch it.keyword {
	case "var", "uvar", "lvar", "evar", "include", "linclude":
		x, err := e.parseExpr()
		if err != nil {
			return nil, err
		}
		if err = e.expectEOF(); err != nil {
			return nil, err
		}
		switch it.keyword {
		case "var":
			return &ast.Var{Loc: loc, X: x}, nil
		case "uvar":
			return &ast.UVar{Loc: loc, X: x}, nil
		case "lvar":
			return &ast.LVar{Loc: loc, X: x}, nil
		case "evar":
			return &ast.EVar{Loc: loc, X: x}, nil
		}
		return &ast.Include{Loc: loc, Target: x, Soft: it.keyword == "linclude"}, nil

	case "name":
		target, err := e.parsePath()
		if err != nil {
			return nil, err
		}
		return &ast.Name{Loc: loc, Target: target}, e.expectEOF()

	case "set":
		target, err := e.parsePath()
		if err != nil {
			return nil, err
		}
		if err = e.expect("="); err != nil {
			return nil, err
		}
		x, err := e.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Set{Loc: loc, Target: target, Value: x}, e.expectEOF()

	case "if":
		return p.parseIf(it, e, loc)

	case "each", "with":
		alias, err := e.expectIdent()
		if err != nil {
			return nil, err
		}
		if err = e.expect("="); err != nil {
			return nil, err
		}
		x, err := e.parseExpr()
		if err != nil {
			return nil, err
		}
		if err = e.expectEOF(); err != nil {
			return nil, err
		}
		body, err := p.parseBody(it)
		if err != nil {
			return nil, err
		}
		if it.keyword == "each" {
			return &ast.Each{Loc: loc, Alias: alias, Over: x, Body: body}, nil
		}
		return &ast.With{Loc: loc, Alias: alias, Value: x, Body: body}, nil

	case "loop":
		return p.parseLoop(it, e, loc)

	case "escape":
		tok := e.nextTok()
		if tok.kind != tString {
			return nil, p.errorf(tok.off, "escape expects a quoted mode name")
		}
		if err := e.expectEOF(); err != nil {
			return nil, err
		}
		body, err := p.parseBody(it)
		if err != nil {
			return nil, err
		}
		return &ast.Escape{Loc: loc, Mode: tok.text, Body: body}, nil

	case "def":
		name, err := e.dottedName()
		if err != nil {
			return nil, err
		}
		var params []string
		if e.accept("(") && !e.accept(")") {
			for {
				param, err := e.expectIdent()
				if err != nil {
					return nil, err
				}
				params = append(params, param)
				if e.accept(")") {
					break
				}
				if err = e.expect(","); err != nil {
					return nil, err
				}
			}
		}
		if err = e.expectEOF(); err != nil {
			return nil, err
		}
		body, err := p.parseBody(it)
		if err != nil {
			return nil, err
		}
		return &ast.Def{Loc: loc, Name: name, Params: params, Body: body}, nil

	case "call":
		name, err := e.dottedName()
		if err != nil {
			return nil, err
		}
		var args []ast.Expr
		if e.accept("(") {
			args, err = e.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		return &ast.Call{Loc: loc, Name: name, Args: args}, e.expectEOF()
	}
	return nil, p.errorf(it.off, "unknown command %q", it.keyword)
}

// parseIf parses if/elif/else chains. elif becomes a nested if in the else
// branch.
func (p *parser) parseIf(it *item, e *exprParser, loc ast.Pos) (ast.Command, error) {
	cond, err := e.parseExpr()
	if err != nil {
		return nil, err
	}
	if err = e.expectEOF(); err != nil {
		return nil, err
	}
	then, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &ast.If{Loc: loc, Cond: cond, Then: then}
	if end == nil {
		return nil, p.errorf(it.off, "missing /if")
	}
	switch end.keyword {
	case "/if":
		return node, nil
	case "else":
		node.Else, err = p.parseBody(&item{keyword: "if", off: it.off})
		if err != nil {
			return nil, err
		}
		return node, nil
	case "elif", "elseif":
		toks, err := p.lex(end.args, end.argsOff)
		if err != nil {
			return nil, err
		}
		nested, err := p.parseIf(it, &exprParser{p: p, toks: toks}, p.position(end.off))
		if err != nil {
			return nil, err
		}
		node.Else = []ast.Command{nested}
		return node, nil
	}
	return nil, p.errorf(end.off, "unexpected %q in if", end.keyword)
}

// parseLoop parses loop:i = end, loop:i = start, end and
// loop:i = start, end, step.
func (p *parser) parseLoop(it *item, e *exprParser, loc ast.Pos) (ast.Command, error) {
	alias, err := e.expectIdent()
	if err != nil {
		return nil, err
	}
	if err = e.expect("="); err != nil {
		return nil, err
	}
	var bounds []ast.Expr
	for {
		x, err := e.parseExpr()
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, x)
		if !e.accept(",") {
			break
		}
	}
	if err = e.expectEOF(); err != nil {
		return nil, err
	}
	node := &ast.Loop{Loc: loc, Alias: alias}
	switch len(bounds) {
	case 1:
		node.End = bounds[0]
	case 2:
		node.Start, node.End = bounds[0], bounds[1]
	case 3:
		node.Start, node.End, node.Step = bounds[0], bounds[1], bounds[2]
	default:
		return nil, p.errorf(it.off, "loop takes 1 to 3 bounds, got %d", len(bounds))
	}
	node.Body, err = p.parseBody(it)
	if err != nil {
		return nil, err
	}
	return node, nil
}
