package data

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseError reports a malformed line in HDF input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hdf line %d: %s", e.Line, e.Msg)
}

// ReadHDF parses HDF text from r into n. Supported forms:
//
//	a.b = value        assignment (value runs to end of line)
//	a.c := a.b         copy of another node's value
//	a {                nested block, closed by a line holding "}"
//	a.d << EOM         multi-line value terminated by a line holding EOM
//	# comment
func ReadHDF(n *Node, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var prefixes []string
	lineNo := 0
	qualify := func(name string) string {
		if len(prefixes) == 0 {
			return name
		}
		return prefixes[len(prefixes)-1] + "." + name
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case line == "}":
			if len(prefixes) == 0 {
				return &ParseError{Line: lineNo, Msg: "unmatched '}'"}
			}
			prefixes = prefixes[:len(prefixes)-1]
			continue
		case strings.HasSuffix(line, "{") && !strings.Contains(line, "="):
			name := strings.TrimSpace(strings.TrimSuffix(line, "{"))
			if !validPath(name) {
				return &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid name %q", name)}
			}
			full := qualify(name)
			n.Create(full)
			prefixes = append(prefixes, full)
			continue
		}

		if i := strings.Index(line, "<<"); i > 0 && !strings.Contains(line[:i], "=") {
			name := strings.TrimSpace(line[:i])
			terminator := strings.TrimSpace(line[i+2:])
			if !validPath(name) || terminator == "" {
				return &ParseError{Line: lineNo, Msg: "malformed multi-line value"}
			}
			var body []string
			closed := false
			for scanner.Scan() {
				lineNo++
				if strings.TrimSpace(scanner.Text()) == terminator {
					closed = true
					break
				}
				body = append(body, scanner.Text())
			}
			if !closed {
				return &ParseError{Line: lineNo, Msg: fmt.Sprintf("missing terminator %q", terminator)}
			}
			n.Set(qualify(name), strings.Join(body, "\n"))
			continue
		}

		if i := strings.Index(line, ":="); i > 0 && i < strings.Index(line, "=") {
			name := strings.TrimSpace(line[:i])
			source := strings.TrimSpace(line[i+2:])
			if !validPath(name) || !validPath(source) {
				return &ParseError{Line: lineNo, Msg: "malformed copy"}
			}
			n.Set(qualify(name), n.GetValue(source, ""))
			continue
		}

		i := strings.Index(line, "=")
		if i <= 0 {
			return &ParseError{Line: lineNo, Msg: fmt.Sprintf("expected assignment, got %q", line)}
		}
		name := strings.TrimSpace(line[:i])
		if !validPath(name) {
			return &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid name %q", name)}
		}
		n.Set(qualify(name), strings.TrimSpace(line[i+1:]))
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(prefixes) != 0 {
		return &ParseError{Line: lineNo, Msg: "unclosed block " + prefixes[len(prefixes)-1]}
	}
	return nil
}

// WriteHDF writes every valued node below n as a dotted assignment, in tree
// order. Multi-line values use the << form.
func WriteHDF(n *Node, w io.Writer) error {
	bw := bufio.NewWriter(w)
	base := n.Path()
	var err error
	n.Walk(func(node *Node) {
		if err != nil || node == n || !node.hasValue {
			return
		}
		path := node.Path()
		if base != "" {
			path = strings.TrimPrefix(path, base+".")
		}
		if strings.Contains(node.value, "\n") {
			_, err = fmt.Fprintf(bw, "%s << EOM\n%s\nEOM\n", path, node.value)
			return
		}
		_, err = fmt.Fprintf(bw, "%s = %s\n", path, node.value)
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

func validPath(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, ".") {
		if seg == "" || strings.ContainsAny(seg, " \t=<>{}:") {
			return false
		}
	}
	return true
}
