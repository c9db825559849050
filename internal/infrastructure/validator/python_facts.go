package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	allureModule   = "allure"
	testPrefix     = "test_"
	stepFunction   = "step"
	maxWalkDepth   = 2000
	maxErrorSample = 40
)

// Step markers expected in every test body, in report order.
var AAASteps = []string{"Arrange", "Act", "Assert"}

type TestFunction struct {
	Name       string
	Line       int
	Async      bool
	Decorators []string
}

type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

// Facts is everything the rule table needs, gathered in a single pass over the tree.
type Facts struct {
	Imports         []string
	HasAllureImport bool
	TestFunctions   []TestFunction
	Decorators      map[string]struct{}
	Steps           map[string]bool
	SyntaxError     *SyntaxError

	// HeaderEnd is where added imports go: after a module docstring and
	// __future__ imports.
	HeaderEnd int
}

func newFacts() *Facts {
	steps := make(map[string]bool, len(AAASteps))
	for _, s := range AAASteps {
		steps[s] = false
	}
	return &Facts{
		Decorators: make(map[string]struct{}),
		Steps:      steps,
	}
}

// DecoratorNames returns the decorator names seen on test functions, sorted.
func (f *Facts) DecoratorNames() []string {
	names := make([]string, 0, len(f.Decorators))
	for n := range f.Decorators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasImport reports whether module (or one of its submodules) is imported.
func (f *Facts) HasImport(module string) bool {
	for _, imp := range f.Imports {
		if imp == module || strings.HasPrefix(imp, module+".") {
			return true
		}
	}
	return false
}

// CollectFacts parses Python source and walks the tree once. Broken input still
// yields facts for the parts tree-sitter could recover; the first error is kept
// in SyntaxError. The returned error is non-nil only if parsing itself was aborted.
func CollectFacts(ctx context.Context, code string) (*Facts, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	src := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse python: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	c := &collector{src: src, facts: newFacts(), stmtRows: make(map[uint32]uint32)}
	c.walk(root, 0)
	c.indentation()
	c.topLevelIndent(root)
	c.facts.HeaderEnd = c.headerEnd(root)
	if root.HasError() && c.facts.SyntaxError == nil {
		c.facts.SyntaxError = &SyntaxError{Line: 1, Column: 1, Message: "invalid syntax"}
	}
	return c.facts, nil
}

type collector struct {
	src   []byte
	facts *Facts
	// first statement column per row
	stmtRows map[uint32]uint32
}

func (c *collector) text(n *sitter.Node) string {
	return n.Content(c.src)
}

func (c *collector) walk(n *sitter.Node, depth int) {
	if n == nil || depth > maxWalkDepth {
		return
	}

	if n.IsError() || n.IsMissing() {
		c.syntaxError(n)
	}
	c.statement(n)

	switch n.Type() {
	case "import_statement":
		c.importStatement(n)
	case "import_from_statement":
		c.importFromStatement(n)
	case "function_definition":
		c.function(n, nil)
	case "decorated_definition":
		c.decoratedDefinition(n, depth)
		return
	case "with_statement":
		c.withStatement(n)
	}

	c.walkChildren(n, depth)
}

func (c *collector) walkChildren(n *sitter.Node, depth int) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c.walk(n.Child(i), depth+1)
	}
}

func (c *collector) syntaxError(n *sitter.Node) {
	msg := "invalid syntax"
	if n.IsMissing() {
		msg = fmt.Sprintf("invalid syntax: missing %q", n.Type())
	} else if sample := strings.TrimSpace(c.text(n)); sample != "" {
		if len(sample) > maxErrorSample {
			sample = sample[:maxErrorSample] + "..."
		}
		msg = fmt.Sprintf("invalid syntax near %q", sample)
	}
	c.report(n.StartPoint(), msg)
}

// report keeps the earliest error in source order.
func (c *collector) report(p sitter.Point, msg string) {
	line, col := int(p.Row)+1, int(p.Column)+1
	if prev := c.facts.SyntaxError; prev != nil {
		if prev.Line < line || (prev.Line == line && prev.Column <= col) {
			return
		}
	}
	c.facts.SyntaxError = &SyntaxError{Line: line, Column: col, Message: msg}
}

// import a, b.c, d as e
func (c *collector) importStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		var name string
		switch child.Type() {
		case "dotted_name":
			name = c.text(child)
		case "aliased_import":
			if dn := child.ChildByFieldName("name"); dn != nil {
				name = c.text(dn)
			}
		}
		c.addImport(name)
	}
}

// from a.b import c
func (c *collector) importFromStatement(n *sitter.Node) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil || mod.Type() != "dotted_name" {
		return
	}
	c.addImport(c.text(mod))
}

func (c *collector) addImport(name string) {
	if name == "" {
		return
	}
	c.facts.Imports = append(c.facts.Imports, name)
	if name == allureModule {
		c.facts.HasAllureImport = true
	}
}

func (c *collector) decoratedDefinition(n *sitter.Node, depth int) {
	var decorators []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		if name := c.decoratorName(child); name != "" {
			decorators = append(decorators, name)
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "function_definition" {
			c.statement(child)
			c.function(child, decorators)
			c.walkChildren(child, depth+1)
			continue
		}
		c.walk(child, depth+1)
	}
}

// decoratorName maps @allure.feature('x'), @allure.feature and @feature to "feature".
func (c *collector) decoratorName(dec *sitter.Node) string {
	expr := firstNamedChild(dec)
	for expr != nil {
		switch expr.Type() {
		case "call":
			expr = expr.ChildByFieldName("function")
		case "attribute":
			if attr := expr.ChildByFieldName("attribute"); attr != nil {
				return c.text(attr)
			}
			return ""
		case "identifier":
			return c.text(expr)
		default:
			return ""
		}
	}
	return ""
}

func (c *collector) function(n *sitter.Node, decorators []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := c.text(nameNode)
	if !strings.HasPrefix(name, testPrefix) {
		return
	}

	async := false
	if first := n.Child(0); first != nil && first.Type() == "async" {
		async = true
	}
	c.facts.TestFunctions = append(c.facts.TestFunctions, TestFunction{
		Name:       name,
		Line:       int(n.StartPoint().Row) + 1,
		Async:      async,
		Decorators: decorators,
	})
	for _, d := range decorators {
		c.facts.Decorators[d] = struct{}{}
	}
}

// with allure.step("Arrange"): ...
func (c *collector) withStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "with_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			item := clause.NamedChild(j)
			if item.Type() != "with_item" {
				continue
			}
			value := item.ChildByFieldName("value")
			if value != nil && value.Type() == "as_pattern" {
				value = firstNamedChild(value)
			}
			c.stepMarker(value)
		}
	}
}

func (c *collector) stepMarker(call *sitter.Node) {
	if call == nil || call.Type() != "call" {
		return
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil || obj.Type() != "identifier" {
		return
	}
	if c.text(obj) != allureModule || c.text(attr) != stepFunction {
		return
	}

	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return
	}
	first := firstNamedChild(args)
	if first == nil {
		return
	}
	value, ok := c.stringLiteral(first)
	if !ok {
		return
	}
	if _, known := c.facts.Steps[value]; known {
		c.facts.Steps[value] = true
	}
}

// stringLiteral returns the value of a plain (non f-, non bytes) string literal.
func (c *collector) stringLiteral(n *sitter.Node) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}
	raw := c.text(n)
	q := strings.IndexAny(raw, `'"`)
	if q < 0 {
		return "", false
	}
	if strings.ContainsAny(strings.ToLower(raw[:q]), "fb") {
		return "", false
	}
	body := raw[q:]
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(quote) && strings.HasPrefix(body, quote) && strings.HasSuffix(body, quote) {
			return body[len(quote) : len(body)-len(quote)], true
		}
	}
	return "", false
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "comment" {
			return child
		}
	}
	return nil
}
