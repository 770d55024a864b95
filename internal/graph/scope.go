package graph

import "strings"

// BindingKind classifies what a top-level name in a module is bound to.
type BindingKind string

const (
	BindFunction     BindingKind = "function"      // def name(...)
	BindClass        BindingKind = "class"         // class Name(...)
	BindConstant     BindingKind = "constant"      // name = <int|float|str|bool literal>
	BindUnion        BindingKind = "union"         // name = Union[A, B] / Optional[A] / A | B
	BindTypeVar      BindingKind = "typevar"       // name = TypeVar("T")
	BindCall         BindingKind = "call"          // name = Cls(...)
	BindAlias        BindingKind = "alias"         // name = other_name
	BindModuleImport BindingKind = "module_import" // import a.b / import a.b as c
	BindSymbolImport BindingKind = "symbol_import" // from m import a [as b]
	BindValue        BindingKind = "value"         // any other assigned expression
)

// LiteralKind is the primitive type of a constant binding.
type LiteralKind string

const (
	LitInt    LiteralKind = "int"
	LitFloat  LiteralKind = "float"
	LitString LiteralKind = "str"
	LitBool   LiteralKind = "bool"
)

// Keyword is one keyword argument of a constructor call, with the value kept
// as source text.
type Keyword struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Param describes one parameter of a function signature.
type Param struct {
	Name       string `json:"name"`
	Default    string `json:"default,omitempty"`
	Annotation string `json:"annotation,omitempty"`
}

// Binding is a single top-level name bound in a module's global namespace.
type Binding struct {
	Name      string      `json:"name"`
	Kind      BindingKind `json:"kind"`
	Module    string      `json:"module"`
	FilePath  string      `json:"filePath"`
	StartLine int         `json:"startLine"`
	EndLine   int         `json:"endLine"`

	// Source is the verbatim definition text. For decorated definitions it
	// includes the decorator lines; DecoratorLines counts them.
	Source         string `json:"source,omitempty"`
	DecoratorLines int    `json:"decoratorLines,omitempty"`

	// Refs lists the identifiers the definition mentions, in first-seen order.
	Refs []string `json:"refs,omitempty"`
	// BodyRefs is Refs without the decorators of a decorated definition.
	BodyRefs []string `json:"bodyRefs,omitempty"`

	// Constant bindings.
	LiteralKind LiteralKind `json:"literalKind,omitempty"`
	Literal     string      `json:"literal,omitempty"`
	Value       any         `json:"value,omitempty"`

	// Union bindings: member expressions as written.
	Members []string `json:"members,omitempty"`

	// Call bindings.
	CallClass    string    `json:"callClass,omitempty"`
	CallArgs     []string  `json:"callArgs,omitempty"`
	CallKeywords []Keyword `json:"callKeywords,omitempty"`

	// Import bindings. ImportModule is the module path as written (without the
	// leading dots of a relative import; Level counts those). ImportName is the
	// imported attribute for symbol imports.
	ImportModule string `json:"importModule,omitempty"`
	ImportName   string `json:"importName,omitempty"`
	Level        int    `json:"level,omitempty"`

	// Alias bindings.
	AliasOf string `json:"aliasOf,omitempty"`

	// Params holds the signature for functions, and the __init__ signature
	// for classes.
	Params []Param `json:"params,omitempty"`
}

// ID returns the "filePath:name" identifier used in the store.
func (b *Binding) ID() string {
	return symbolID(b.FilePath, b.Name)
}

// Identity names the object the binding defines. It is keyed by file rather
// than module name because one file may be importable under several module
// names (for example with and without a src/ prefix).
func (b *Binding) Identity() string {
	if b.FilePath != "" {
		return b.FilePath + ":" + b.Name
	}
	return b.Module + ":" + b.Name
}

// Mentions reports whether the definition references name.
func (b *Binding) Mentions(name string) bool {
	for _, r := range b.Refs {
		if r == name {
			return true
		}
	}
	return false
}

// SymbolKind maps the binding onto the store's symbol classification.
func (b *Binding) SymbolKind() SymbolKind {
	switch b.Kind {
	case BindFunction:
		return SymbolKindFunction
	case BindClass:
		return SymbolKindClass
	case BindTypeVar:
		return SymbolKindTypeVar
	case BindUnion:
		return SymbolKindUnion
	case BindModuleImport:
		return SymbolKindModule
	default:
		return SymbolKindVariable
	}
}

// ModuleScope is the global namespace of one Python module: its top-level
// bindings in first-binding order. Rebinding a name replaces the binding in
// place, so the last write wins but the original position is kept.
type ModuleScope struct {
	Module   string `json:"module"`
	FilePath string `json:"filePath"`
	Package  bool   `json:"package"` // true for __init__.py

	order    []string
	bindings map[string]*Binding
	// rebound records names that were bound more than once.
	rebound map[string]int
}

// NewModuleScope returns an empty scope for the given module.
func NewModuleScope(module, filePath string) *ModuleScope {
	return &ModuleScope{
		Module:   module,
		FilePath: filePath,
		Package:  strings.HasSuffix(filePath, "__init__.py"),
		bindings: make(map[string]*Binding),
		rebound:  make(map[string]int),
	}
}

// Bind adds or replaces a binding.
func (s *ModuleScope) Bind(b *Binding) {
	b.Module = s.Module
	b.FilePath = s.FilePath
	if _, ok := s.bindings[b.Name]; ok {
		s.rebound[b.Name]++
	} else {
		s.order = append(s.order, b.Name)
	}
	s.bindings[b.Name] = b
}

// Lookup returns the binding for name, or nil.
func (s *ModuleScope) Lookup(name string) *Binding {
	return s.bindings[name]
}

// Bindings returns the bindings in first-binding order.
func (s *ModuleScope) Bindings() []*Binding {
	out := make([]*Binding, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.bindings[name])
	}
	return out
}

// Rebound returns how many times name was rebound after its first binding.
func (s *ModuleScope) Rebound(name string) int {
	return s.rebound[name]
}

// Len returns the number of distinct names bound in the scope.
func (s *ModuleScope) Len() int {
	return len(s.order)
}

// withModule returns a copy of the scope registered under another module
// name. Bindings are copied so their Module field matches.
func (s *ModuleScope) withModule(module string) *ModuleScope {
	c := NewModuleScope(module, s.FilePath)
	for _, b := range s.Bindings() {
		cp := *b
		c.order = append(c.order, cp.Name)
		cp.Module = module
		c.bindings[cp.Name] = &cp
	}
	for k, v := range s.rebound {
		c.rebound[k] = v
	}
	return c
}

// isPyExported returns true if the name does not start with an underscore.
func isPyExported(name string) bool {
	return !strings.HasPrefix(name, "_")
}
