package compiler

import (
	"fmt"
	"strings"
)

// Dump returns a readable listing of the compiled form of t: its statements
// followed by each macro under its generated symbol.
func Dump(t *Template) string {
	d := &dumper{}
	d.line("template %s (escape %s)", t.name, t.opts.EscapeMode)
	d.block(t.body)
	for _, m := range t.macros {
		d.line("macro %s %s(%s)", m.symbol, m.name, joinStrings(m.params))
		d.block(m.body)
	}
	return d.b.String()
}

type dumper struct {
	b     strings.Builder
	depth int
}

func (d *dumper) line(format string, args ...any) {
	d.b.WriteString(strings.Repeat("  ", d.depth))
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) indent(fn func()) {
	d.depth++
	fn()
	d.depth--
}

func (d *dumper) block(stmts []Stmt) {
	d.indent(func() {
		for _, s := range stmts {
			s.dump(d)
		}
	})
}

func joinStrings(s []string) string { return strings.Join(s, ", ") }
