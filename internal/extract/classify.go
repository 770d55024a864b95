package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/pybundle/internal/graph"
)

// classifier walks the names a definition mentions and records each one as
// a dependency, expanding local definitions depth-first. All state lives on
// the classifier, one per extraction.
type classifier struct {
	index    *graph.Index
	locality *graph.Locality
	logger   *slog.Logger
	exclude  map[string]bool

	// visited maps an object identity to the reference recorded for it. Seen
	// identities that produced no reference map to nil.
	visited map[string]*SymbolReference
	// standard holds the modules recorded as whole-module imports.
	standard map[string]bool
	byName   map[string]*SymbolReference
	refs     []*SymbolReference // discovery order, dependencies first
	diags    []Diagnostic
	reported map[string]bool
}

func newClassifier(index *graph.Index, locality *graph.Locality, logger *slog.Logger, exclude []string) *classifier {
	c := &classifier{
		index:    index,
		locality: locality,
		logger:   logger,
		exclude:  make(map[string]bool, len(exclude)),
		visited:  make(map[string]*SymbolReference),
		standard: make(map[string]bool),
		byName:   make(map[string]*SymbolReference),
		reported: make(map[string]bool),
	}
	for _, name := range exclude {
		c.exclude[name] = true
	}
	return c
}

// classify records every binding of scope that refs mentions, in the
// scope's binding order.
func (c *classifier) classify(scope *graph.ModuleScope, refs []string) {
	if len(refs) == 0 {
		return
	}
	mentioned := make(map[string]bool, len(refs))
	for _, r := range refs {
		mentioned[r] = true
	}
	for _, b := range scope.Bindings() {
		if mentioned[b.Name] {
			c.classifyName(scope, b.Name)
		}
	}
}

// classifyName records what name denotes in scope.
func (c *classifier) classifyName(scope *graph.ModuleScope, name string) {
	if strings.HasPrefix(name, "__") || c.exclude[name] {
		return
	}
	if n := scope.Rebound(name); n > 0 {
		c.diagnose(ErrAmbiguousBinding, name, scope.Module, fmt.Sprintf("bound %d times, using the last binding", n+1))
	}

	t := c.index.Resolve(scope, name)
	if t == nil {
		return
	}
	id := t.Identity()
	if ref, seen := c.visited[id]; seen {
		if ref != nil {
			c.alias(ref, name)
		}
		return
	}
	c.visited[id] = nil

	switch {
	case t.IsModule:
		c.record(id, &SymbolReference{
			Name:         name,
			OriginModule: t.Module,
			ImportKind:   ImportStandard,
			IsLocal:      t.Local && c.moduleIsLocal(t.Module),
		})
		c.standard[t.Module] = true

	case !t.Local:
		if c.standard[t.Module] {
			c.logger.Debug("skipping symbol of imported module", "name", name, "module", t.Module)
			return
		}
		c.record(id, &SymbolReference{
			Name:         name,
			Symbol:       t.Name,
			OriginModule: t.Module,
			ImportKind:   ImportSelective,
		})

	case t.Scope == nil || t.Binding == nil:
		c.unresolvable(id, name, t, "not defined in "+t.Module)

	default:
		c.classifyLocal(id, name, t)
	}
}

// classifyLocal records a binding defined in an indexed module.
func (c *classifier) classifyLocal(id, name string, t *graph.Target) {
	b := t.Binding
	switch b.Kind {
	case graph.BindUnion:
		c.recordUnion(id, name, t)

	case graph.BindConstant:
		c.record(id, c.variable(name, t, ValueConstant))

	case graph.BindCall:
		c.recordAfterRefs(id, c.variable(name, t, ValueCall), t)

	case graph.BindTypeVar, graph.BindFunction, graph.BindClass:
		if c.standard[t.Module] {
			c.logger.Debug("skipping symbol of imported module", "name", name, "module", t.Module)
			return
		}
		if !c.locality.IsLocal(t.Scope.FilePath) {
			c.record(id, &SymbolReference{Name: name, Symbol: t.Name, OriginModule: t.Module, ImportKind: ImportSelective})
			return
		}
		ref := &SymbolReference{
			Name:         name,
			Symbol:       t.Name,
			OriginModule: t.Module,
			ImportKind:   ImportSelective,
			IsLocal:      true,
			Refs:         b.Refs,
			FilePath:     b.FilePath,
			Line:         b.StartLine,
			binding:      b,
		}
		if b.Kind == graph.BindTypeVar {
			ref.Declaration = b.Source
		} else {
			if b.Source == "" {
				c.unresolvable(id, name, t, "definition has no source text")
				return
			}
			ref.SourceText = b.Source
		}
		if !c.claim(id, ref) {
			return
		}
		c.classify(t.Scope, b.Refs)
		c.commit(ref)

	default:
		// Any other expression is copied as written.
		c.recordAfterRefs(id, c.variable(name, t, ValueExpr), t)
	}
}

// recordAfterRefs claims ref and appends it once the names its value reads
// have been recorded, so each variable line follows the lines it needs.
func (c *classifier) recordAfterRefs(id string, ref *SymbolReference, t *graph.Target) {
	if !c.claim(id, ref) {
		return
	}
	c.classify(t.Scope, t.Binding.Refs)
	c.commit(ref)
}

func (c *classifier) variable(name string, t *graph.Target, kind ValueKind) *SymbolReference {
	return &SymbolReference{
		Name:         name,
		Symbol:       t.Name,
		OriginModule: t.Module,
		ImportKind:   ImportVariable,
		ValueKind:    kind,
		Refs:         t.Binding.Refs,
		FilePath:     t.Binding.FilePath,
		Line:         t.Binding.StartLine,
		binding:      t.Binding,
	}
}

// recordUnion records the union line and a selective import for each member
// type. Members are treated as library types; builtins and None need no
// import.
func (c *classifier) recordUnion(id, name string, t *graph.Target) {
	b := t.Binding
	ref := &SymbolReference{
		Name:         name,
		Symbol:       t.Name,
		OriginModule: t.Module,
		ImportKind:   ImportUnion,
		SourceText:   name + " = " + union(b),
		Refs:         b.Refs,
		FilePath:     b.FilePath,
		Line:         b.StartLine,
		binding:      b,
	}
	if !c.record(id, ref) {
		return
	}
	for _, member := range b.Members {
		c.unionMember(t.Scope, member)
	}
}

func (c *classifier) unionMember(scope *graph.ModuleScope, member string) {
	head := strings.TrimSpace(member)
	if i := strings.IndexAny(head, ".["); i >= 0 {
		head = head[:i]
	}
	if head == "" || head == "None" || c.byName[head] != nil {
		return
	}
	mt := c.index.Resolve(scope, head)
	if mt == nil {
		return
	}
	if mt.IsModule {
		c.classifyName(scope, head)
		return
	}
	id := mt.Identity()
	if _, seen := c.visited[id]; seen {
		return
	}
	c.visited[id] = nil
	c.record(id, &SymbolReference{
		Name:         head,
		Symbol:       mt.Name,
		OriginModule: mt.Module,
		ImportKind:   ImportSelective,
	})
}

// external records a selective import of a library symbol unless the name
// is already bound in the bundle.
func (c *classifier) external(name, module string) {
	if c.byName[name] != nil {
		return
	}
	id := module + ":" + name
	if _, seen := c.visited[id]; seen {
		return
	}
	c.record(id, &SymbolReference{Name: name, Symbol: name, OriginModule: module, ImportKind: ImportSelective})
}

func (c *classifier) unresolvable(id, name string, t *graph.Target, why string) {
	c.diagnose(ErrUnresolvableSource, name, t.Module, why)
	c.record(id, &SymbolReference{Name: name, Symbol: t.Name, OriginModule: t.Module, ImportKind: ImportSelective})
}

// record claims the reference's name and appends it in one step.
func (c *classifier) record(id string, ref *SymbolReference) bool {
	if !c.claim(id, ref) {
		return false
	}
	c.commit(ref)
	return true
}

// claim binds ref.Name to ref. The first object to claim a name keeps it.
func (c *classifier) claim(id string, ref *SymbolReference) bool {
	if other := c.byName[ref.Name]; other != nil {
		c.diagnose(ErrAmbiguousBinding, ref.Name, ref.OriginModule,
			fmt.Sprintf("name already used for %s from %s", other.Name, other.OriginModule))
		return false
	}
	ref.identity = id
	c.byName[ref.Name] = ref
	c.visited[id] = ref
	return true
}

// commit appends ref in discovery order.
func (c *classifier) commit(ref *SymbolReference) {
	c.refs = append(c.refs, ref)
	c.logger.Debug("dependency", "name", ref.Name, "module", ref.OriginModule, "kind", ref.ImportKind, "local", ref.IsLocal)
}

// alias records another name an already recorded object is reachable by.
func (c *classifier) alias(ref *SymbolReference, name string) {
	if c.byName[name] != nil {
		return
	}
	ref.Aliases = append(ref.Aliases, name)
	c.byName[name] = ref
}

func (c *classifier) moduleIsLocal(module string) bool {
	scope := c.index.Module(module)
	return scope != nil && c.locality.IsLocal(scope.FilePath)
}

func (c *classifier) diagnose(err error, name, module, detail string) {
	key := err.Error() + "|" + module + "|" + name
	if c.reported[key] {
		return
	}
	c.reported[key] = true
	d := newDiagnostic(err, name, module, detail)
	c.diags = append(c.diags, d)
	c.logger.Warn("degraded dependency", "code", d.Code, "name", name, "module", module, "detail", detail)
}
