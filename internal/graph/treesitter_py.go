package graph

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// pyExtractor builds the global namespace of a Python module from its
// top-level statements.
type pyExtractor struct{}

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, scope *ModuleScope) {
	e.statements(root, source, scope)
}

// statements binds every top-level statement in block. Compound statements
// that do not open a new scope (if/try/with/for/while) are entered so that
// guarded imports and conditional definitions are seen; later bindings win.
func (e *pyExtractor) statements(block *tree_sitter.Node, source []byte, scope *ModuleScope) {
	forEachNamed(block, func(stmt *tree_sitter.Node) {
		switch stmt.Kind() {
		case "function_definition":
			e.bindDefinition(stmt, stmt, source, scope)
		case "class_definition":
			e.bindDefinition(stmt, stmt, source, scope)
		case "decorated_definition":
			if def := stmt.ChildByFieldName("definition"); def != nil {
				e.bindDefinition(stmt, def, source, scope)
			}
		case "import_statement":
			e.bindImport(stmt, source, scope)
		case "import_from_statement":
			e.bindFromImport(stmt, source, scope)
		case "expression_statement":
			forEachNamed(stmt, func(expr *tree_sitter.Node) {
				if expr.Kind() == "assignment" {
					e.bindAssignment(stmt, expr, source, scope)
				}
			})
		case "if_statement", "try_statement", "with_statement", "for_statement", "while_statement",
			"elif_clause", "else_clause", "except_clause", "finally_clause", "block":
			e.statements(stmt, source, scope)
		}
	})
}

// bindDefinition binds a def or class. outer is the node whose text becomes
// the binding source (the decorated_definition when decorators are present).
func (e *pyExtractor) bindDefinition(outer, def *tree_sitter.Node, source []byte, scope *ModuleScope) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	b := &Binding{
		Name:           nameNode.Utf8Text(source),
		StartLine:      int(outer.StartPosition().Row) + 1,
		EndLine:        int(outer.EndPosition().Row) + 1,
		Source:         outer.Utf8Text(source),
		DecoratorLines: int(def.StartPosition().Row - outer.StartPosition().Row),
		Refs:           collectRefs(outer, source),
		BodyRefs:       collectRefs(def, source),
	}
	if def.Kind() == "class_definition" {
		b.Kind = BindClass
		b.Params = classInitParams(def, source)
	} else {
		b.Kind = BindFunction
		b.Params = functionParams(def, source)
	}
	scope.Bind(b)
}

// bindImport handles `import a.b` (binds a) and `import a.b as c` (binds c).
func (e *pyExtractor) bindImport(node *tree_sitter.Node, source []byte, scope *ModuleScope) {
	forEachNamed(node, func(child *tree_sitter.Node) {
		b := &Binding{
			Kind:      BindModuleImport,
			StartLine: int(node.StartPosition().Row) + 1,
			EndLine:   int(node.EndPosition().Row) + 1,
		}
		switch child.Kind() {
		case "dotted_name":
			b.ImportModule = child.Utf8Text(source)
			b.Name = strings.SplitN(b.ImportModule, ".", 2)[0]
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				return
			}
			b.ImportModule = nameNode.Utf8Text(source)
			b.Name = aliasNode.Utf8Text(source)
		default:
			return
		}
		scope.Bind(b)
	})
}

// bindFromImport handles `from m import a, b as c` including relative forms.
// Wildcard imports bind nothing statically.
func (e *pyExtractor) bindFromImport(node *tree_sitter.Node, source []byte, scope *ModuleScope) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	var module string
	level := 0
	switch moduleNode.Kind() {
	case "relative_import":
		forEachNamed(moduleNode, func(part *tree_sitter.Node) {
			switch part.Kind() {
			case "import_prefix":
				level = strings.Count(part.Utf8Text(source), ".")
			case "dotted_name":
				module = part.Utf8Text(source)
			}
		})
	default:
		module = moduleNode.Utf8Text(source)
	}

	forEachNamed(node, func(child *tree_sitter.Node) {
		if sameNode(child, moduleNode) {
			return
		}
		b := &Binding{
			Kind:         BindSymbolImport,
			ImportModule: module,
			Level:        level,
			StartLine:    int(node.StartPosition().Row) + 1,
			EndLine:      int(node.EndPosition().Row) + 1,
		}
		switch child.Kind() {
		case "dotted_name":
			b.ImportName = child.Utf8Text(source)
			b.Name = b.ImportName
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				return
			}
			b.ImportName = nameNode.Utf8Text(source)
			b.Name = aliasNode.Utf8Text(source)
		default:
			return
		}
		scope.Bind(b)
	})
}

// bindAssignment binds each identifier target of a (possibly chained)
// assignment to the classified right-hand side.
func (e *pyExtractor) bindAssignment(stmt, assign *tree_sitter.Node, source []byte, scope *ModuleScope) {
	var targets []string
	node := assign
	for {
		left := node.ChildByFieldName("left")
		if left != nil && left.Kind() == "identifier" {
			targets = append(targets, left.Utf8Text(source))
		}
		right := node.ChildByFieldName("right")
		if right == nil {
			return // bare annotation: x: int
		}
		if right.Kind() == "assignment" {
			node = right
			continue
		}
		for _, target := range targets {
			b := classifyValue(right, source)
			b.Name = target
			b.StartLine = int(stmt.StartPosition().Row) + 1
			b.EndLine = int(stmt.EndPosition().Row) + 1
			b.Source = target + " = " + right.Utf8Text(source)
			scope.Bind(b)
		}
		return
	}
}

// classifyValue inspects the right-hand side of a top-level assignment.
func classifyValue(value *tree_sitter.Node, source []byte) *Binding {
	b := &Binding{Kind: BindValue, Refs: collectRefs(value, source)}

	if kind, lit, v, ok := pyLiteral(value, source); ok {
		b.Kind = BindConstant
		b.LiteralKind = kind
		b.Literal = lit
		b.Value = v
		return b
	}

	switch value.Kind() {
	case "identifier":
		b.Kind = BindAlias
		b.AliasOf = value.Utf8Text(source)
	case "subscript":
		if members, ok := unionSubscript(value, source); ok {
			b.Kind = BindUnion
			b.Members = members
		}
	case "binary_operator":
		if members, ok := unionOperator(value, source); ok {
			b.Kind = BindUnion
			b.Members = members
		}
	case "call":
		fn := value.ChildByFieldName("function")
		if fn == nil {
			break
		}
		if lastDotted(fn.Utf8Text(source)) == "TypeVar" {
			b.Kind = BindTypeVar
			break
		}
		if fn.Kind() == "identifier" {
			b.Kind = BindCall
			b.CallClass = fn.Utf8Text(source)
			b.CallArgs, b.CallKeywords = callArguments(value, source)
		}
	}
	return b
}

// pyLiteral recognises int, float, str and bool literals, including signed
// numbers and implicitly concatenated strings. It returns the literal text,
// and the decoded value.
func pyLiteral(node *tree_sitter.Node, source []byte) (LiteralKind, string, any, bool) {
	text := node.Utf8Text(source)
	switch node.Kind() {
	case "true":
		return LitBool, text, true, true
	case "false":
		return LitBool, text, false, true
	case "integer":
		clean := strings.ReplaceAll(text, "_", "")
		if n, err := strconv.ParseInt(clean, 0, 64); err == nil {
			return LitInt, text, n, true
		}
		if strings.HasSuffix(strings.ToLower(clean), "j") {
			return "", "", nil, false
		}
		return LitInt, text, text, true
	case "float":
		clean := strings.ReplaceAll(text, "_", "")
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return "", "", nil, false
		}
		return LitFloat, text, f, true
	case "unary_operator":
		op := node.ChildByFieldName("operator")
		arg := node.ChildByFieldName("argument")
		if op == nil || arg == nil {
			return "", "", nil, false
		}
		kind, _, v, ok := pyLiteral(arg, source)
		if !ok || (kind != LitInt && kind != LitFloat) {
			return "", "", nil, false
		}
		if op.Utf8Text(source) == "-" {
			switch n := v.(type) {
			case int64:
				v = -n
			case float64:
				v = -n
			}
		}
		return kind, text, v, true
	case "string":
		s, ok := decodePyString(text)
		if !ok {
			return "", "", nil, false
		}
		return LitString, text, s, true
	case "concatenated_string":
		var sb strings.Builder
		ok := true
		forEachNamed(node, func(part *tree_sitter.Node) {
			s, partOK := decodePyString(part.Utf8Text(source))
			ok = ok && partOK
			sb.WriteString(s)
		})
		if !ok {
			return "", "", nil, false
		}
		return LitString, text, sb.String(), true
	}
	return "", "", nil, false
}

// decodePyString decodes a Python str literal. Byte strings and f-strings
// are not constants and report false.
func decodePyString(lit string) (string, bool) {
	i := strings.IndexAny(lit, `'"`)
	if i < 0 {
		return "", false
	}
	prefix := strings.ToLower(lit[:i])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := lit[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			body = body[len(q) : len(body)-len(q)]
			break
		}
	}
	if strings.Contains(prefix, "r") {
		return body, true
	}
	return unescapePy(body), true
}

// unescapePy interprets the common Python escape sequences. Unknown escapes
// are kept verbatim, as Python does.
func unescapePy(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			// Up to three octal digits.
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			r, _ := strconv.ParseUint(s[i:j], 8, 32)
			sb.WriteRune(rune(r))
			i = j - 1
		case '\\', '\'', '"':
			sb.WriteByte(s[i])
		case '\n':
			// line continuation
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[i]]
			if i+width < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32); err == nil {
					sb.WriteRune(rune(r))
					i += width
					continue
				}
			}
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// unionSubscript recognises Union[...] and Optional[...] (bare or
// typing-qualified) and returns the member expressions.
func unionSubscript(node *tree_sitter.Node, source []byte) ([]string, bool) {
	value := node.ChildByFieldName("value")
	if value == nil {
		return nil, false
	}
	head := lastDotted(value.Utf8Text(source))
	if head != "Union" && head != "Optional" {
		return nil, false
	}
	var members []string
	forEachNamed(node, func(child *tree_sitter.Node) {
		if sameNode(child, value) {
			return
		}
		if child.Kind() == "tuple" {
			forEachNamed(child, func(el *tree_sitter.Node) {
				members = append(members, el.Utf8Text(source))
			})
			return
		}
		members = append(members, child.Utf8Text(source))
	})
	if head == "Optional" {
		members = append(members, "None")
	}
	return members, len(members) > 0
}

// unionOperator recognises PEP 604 unions (A | B | None). Each operand must
// be a type-like expression and at least one must look like a type name, so
// that integer flag expressions are not mistaken for unions.
func unionOperator(node *tree_sitter.Node, source []byte) ([]string, bool) {
	var members []string
	typeLike := false
	var walk func(n *tree_sitter.Node) bool
	walk = func(n *tree_sitter.Node) bool {
		if n.Kind() == "binary_operator" {
			op := n.ChildByFieldName("operator")
			if op == nil || op.Utf8Text(source) != "|" {
				return false
			}
			return walk(n.ChildByFieldName("left")) && walk(n.ChildByFieldName("right"))
		}
		switch n.Kind() {
		case "identifier", "attribute", "subscript", "none":
			text := n.Utf8Text(source)
			last := lastDotted(text)
			if n.Kind() == "none" || (last != "" && last[0] >= 'A' && last[0] <= 'Z') {
				typeLike = true
			}
			members = append(members, text)
			return true
		}
		return false
	}
	if !walk(node) || !typeLike {
		return nil, false
	}
	return members, true
}

// callArguments splits a call's argument list into positional expressions
// and keyword arguments, all kept as source text.
func callArguments(call *tree_sitter.Node, source []byte) ([]string, []Keyword) {
	argList := call.ChildByFieldName("arguments")
	if argList == nil {
		return nil, nil
	}
	var args []string
	var kws []Keyword
	forEachNamed(argList, func(arg *tree_sitter.Node) {
		if arg.Kind() == "keyword_argument" {
			name := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if name != nil && value != nil {
				kws = append(kws, Keyword{Name: name.Utf8Text(source), Value: value.Utf8Text(source)})
			}
			return
		}
		args = append(args, arg.Utf8Text(source))
	})
	return args, kws
}

// functionParams extracts the parameter list of a function definition,
// omitting self.
func functionParams(def *tree_sitter.Node, source []byte) []Param {
	params := def.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var out []Param
	forEachNamed(params, func(p *tree_sitter.Node) {
		var param Param
		switch p.Kind() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
			param.Name = p.Utf8Text(source)
		case "typed_parameter":
			if first := p.NamedChild(0); first != nil {
				param.Name = first.Utf8Text(source)
			}
			param.Annotation = fieldText(p, "type", source)
		case "default_parameter":
			param.Name = fieldText(p, "name", source)
			param.Default = fieldText(p, "value", source)
		case "typed_default_parameter":
			param.Name = fieldText(p, "name", source)
			param.Annotation = fieldText(p, "type", source)
			param.Default = fieldText(p, "value", source)
		default:
			return
		}
		if param.Name == "" || param.Name == "self" {
			return
		}
		out = append(out, param)
	})
	return out
}

// classInitParams returns the __init__ signature of a class body.
func classInitParams(class *tree_sitter.Node, source []byte) []Param {
	body := class.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var params []Param
	forEachNamed(body, func(stmt *tree_sitter.Node) {
		def := stmt
		if stmt.Kind() == "decorated_definition" {
			def = stmt.ChildByFieldName("definition")
		}
		if def == nil || def.Kind() != "function_definition" {
			return
		}
		if fieldText(def, "name", source) == "__init__" {
			params = functionParams(def, source)
		}
	})
	return params
}

// collectRefs returns the identifiers referenced under node in first-seen
// order. Attribute names (x.attr) and keyword argument names (f(k=v)) are
// not references to globals and are skipped, as are the names introduced by
// nested definitions and parameter lists.
func collectRefs(node *tree_sitter.Node, source []byte) []string {
	seen := make(map[string]bool)
	var refs []string
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "identifier":
			name := n.Utf8Text(source)
			if !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
			return
		case "attribute":
			if obj := n.ChildByFieldName("object"); obj != nil {
				walk(obj)
			}
			return
		case "keyword_argument":
			if v := n.ChildByFieldName("value"); v != nil {
				walk(v)
			}
			return
		case "string":
			forEachNamed(n, func(part *tree_sitter.Node) {
				if part.Kind() == "interpolation" {
					walk(part)
				}
			})
			return
		case "comment":
			return
		case "parameters", "lambda_parameters":
			forEachNamed(n, func(p *tree_sitter.Node) {
				for _, field := range []string{"type", "value"} {
					if c := p.ChildByFieldName(field); c != nil {
						walk(c)
					}
				}
			})
			return
		case "function_definition", "class_definition":
			name := n.ChildByFieldName("name")
			for i := uint(0); i < n.ChildCount(); i++ {
				if c := n.Child(i); c != nil && (name == nil || !sameNode(c, name)) {
					walk(c)
				}
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
	}
	walk(node)
	return refs
}

// --- tree-sitter helpers ---

// forEachNamed calls fn for each named, non-comment child of node.
func forEachNamed(node *tree_sitter.Node, fn func(*tree_sitter.Node)) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		fn(child)
	}
}

func sameNode(a, b *tree_sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

func fieldText(node *tree_sitter.Node, field string, source []byte) string {
	if c := node.ChildByFieldName(field); c != nil {
		return c.Utf8Text(source)
	}
	return ""
}

// lastDotted returns the final component of a dotted expression.
func lastDotted(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}
