package validator

import (
	"bytes"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// tree-sitter accepts these without ERROR nodes; Python does not.
const (
	msgEmptyBlock     = "expected an indented block"
	msgUnexpectedInd  = "unexpected indent"
	msgUnindent       = "unindent does not match any outer indentation level"
	msgTabError       = "inconsistent use of tabs and spaces in indentation"
	msgPrintStatement = "Missing parentheses in call to 'print'"
	msgExecStatement  = "Missing parentheses in call to 'exec'"
)

// Nodes that must own a non-empty block.
var compoundNodes = map[string]struct{}{
	"function_definition": {},
	"class_definition":    {},
	"if_statement":        {},
	"elif_clause":         {},
	"else_clause":         {},
	"for_statement":       {},
	"while_statement":     {},
	"with_statement":      {},
	"try_statement":       {},
	"except_clause":       {},
	"except_group_clause": {},
	"finally_clause":      {},
	"case_clause":         {},
}

// Nodes that open a logical line.
func opensLine(typ string) bool {
	switch typ {
	case "function_definition", "class_definition", "decorated_definition",
		"elif_clause", "else_clause", "except_clause", "except_group_clause",
		"finally_clause", "case_clause":
		return true
	}
	return strings.HasSuffix(typ, "_statement")
}

func (c *collector) statement(n *sitter.Node) {
	typ := n.Type()
	p := n.StartPoint()

	if opensLine(typ) {
		if col, ok := c.stmtRows[p.Row]; !ok || p.Column < col {
			c.stmtRows[p.Row] = p.Column
		}
	}

	switch typ {
	case "print_statement":
		c.report(p, msgPrintStatement)
	case "exec_statement":
		c.report(p, msgExecStatement)
	}
	if _, ok := compoundNodes[typ]; ok && !hasBlock(n) {
		c.report(p, msgEmptyBlock)
	}
}

// hasBlock reports whether n's own block holds at least one statement.
func hasBlock(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "block" {
			return firstNamedChild(child) != nil
		}
	}
	return false
}

func (c *collector) topLevelIndent(root *sitter.Node) {
	prevEnd := -1
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		p := child.StartPoint()
		if child.Type() != "comment" && int(p.Row) > prevEnd && p.Column != 0 {
			c.report(p, msgUnexpectedInd)
		}
		prevEnd = int(child.EndPoint().Row)
	}
}

type indentLevel struct {
	col int // tabs to the next multiple of 8
	alt int // tabs count as one column
}

func measureIndent(ws []byte) indentLevel {
	var lvl indentLevel
	for _, b := range ws {
		switch b {
		case ' ':
			lvl.col++
			lvl.alt++
		case '\t':
			lvl.col = (lvl.col/8 + 1) * 8
			lvl.alt++
		case '\f':
			lvl = indentLevel{}
		}
	}
	return lvl
}

// indentation replays the tokenizer's indent stack over the rows that start a
// logical line. An indent that compares differently under the two tab widths is
// ambiguous and rejected.
func (c *collector) indentation() {
	rows := make([]uint32, 0, len(c.stmtRows))
	for r := range c.stmtRows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	lines := bytes.Split(c.src, []byte("\n"))

	stack := []indentLevel{{}}
	for _, row := range rows {
		if int(row) >= len(lines) {
			continue
		}
		line, col := lines[row], int(c.stmtRows[row])
		if col > len(line) || len(bytes.TrimLeft(line[:col], " \t\f")) != 0 {
			continue
		}
		lvl := measureIndent(line[:col])
		at := sitter.Point{Row: row, Column: uint32(col)}

		top := stack[len(stack)-1]
		switch {
		case lvl.col == top.col:
			if lvl.alt != top.alt {
				c.report(at, msgTabError)
				return
			}
		case lvl.col > top.col:
			if lvl.alt <= top.alt {
				c.report(at, msgTabError)
				return
			}
			stack = append(stack, lvl)
		default:
			for len(stack) > 1 && lvl.col < stack[len(stack)-1].col {
				stack = stack[:len(stack)-1]
			}
			top = stack[len(stack)-1]
			if lvl.col != top.col {
				c.report(at, msgUnindent)
				return
			}
			if lvl.alt != top.alt {
				c.report(at, msgTabError)
				return
			}
		}
	}
}

// headerEnd is the offset of the line after a leading docstring and any
// `from __future__` imports, or 0 when the module has neither.
func (c *collector) headerEnd(root *sitter.Node) int {
	end := 0
	first := true
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch {
		case child.Type() == "comment":
			continue
		case first && isDocstring(child):
		case child.Type() == "future_import_statement":
		default:
			return c.lineEnd(end)
		}
		first = false
		end = int(child.EndByte())
	}
	return c.lineEnd(end)
}

func (c *collector) lineEnd(off int) int {
	if off <= 0 {
		return 0
	}
	if i := bytes.IndexByte(c.src[off:], '\n'); i >= 0 {
		return off + i + 1
	}
	return len(c.src)
}

func isDocstring(n *sitter.Node) bool {
	if n.Type() != "expression_statement" || n.NamedChildCount() != 1 {
		return false
	}
	switch n.NamedChild(0).Type() {
	case "string", "concatenated_string":
		return true
	}
	return false
}

// InsertImports puts block (complete lines) at offset at, normally
// Facts.HeaderEnd, so a docstring and __future__ imports stay first.
func InsertImports(code string, at int, block string) string {
	if at <= 0 || at > len(code) {
		return block + code
	}
	head := code[:at]
	if !strings.HasSuffix(head, "\n") {
		head += "\n"
	}
	return head + block + code[at:]
}
