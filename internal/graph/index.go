package graph

import (
	"path/filepath"
	"sort"
	"strings"
)

// maxResolveHops bounds import/alias chain following so that circular
// re-exports cannot loop.
const maxResolveHops = 16

// Index is the project-wide module table: every local Python module's global
// namespace, addressable by dotted module name and by file path. It is built
// once per project root and is read-only afterwards.
type Index struct {
	Root string

	modules map[string]*ModuleScope
	files   map[string][]string // file path -> module names, preferred first
}

// NewIndex returns an empty index for root.
func NewIndex(root string) *Index {
	return &Index{
		Root:    root,
		modules: make(map[string]*ModuleScope),
		files:   make(map[string][]string),
	}
}

// Add registers a parsed module scope. The scope is registered under the
// module name derived from its repo-relative path and, for every source root
// (such as "src") that contains the file, under the name relative to that
// root. Names relative to a deeper source root are preferred.
func (ix *Index) Add(scope *ModuleScope, sourceRoots []string) {
	names := moduleNames(scope.FilePath, sourceRoots)
	for _, name := range names {
		s := scope
		if name != scope.Module {
			s = scope.withModule(name)
		}
		ix.modules[name] = s
	}
	ix.files[scope.FilePath] = names
}

// moduleNames lists the module names a file is importable as, preferred first.
func moduleNames(path string, sourceRoots []string) []string {
	type candidate struct {
		name  string
		depth int
	}
	var cands []candidate
	seen := make(map[string]bool)
	add := func(name string, depth int) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		cands = append(cands, candidate{name, depth})
	}

	slashed := filepath.ToSlash(path)
	for _, root := range sourceRoots {
		root = strings.Trim(filepath.ToSlash(filepath.Clean(root)), "/")
		if root == "" || root == "." {
			add(ModuleNameForPath(slashed), 0)
			continue
		}
		if strings.HasPrefix(slashed, root+"/") {
			add(ModuleNameForPath(strings.TrimPrefix(slashed, root+"/")), strings.Count(root, "/")+1)
		}
	}
	add(ModuleNameForPath(slashed), 0)

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].depth > cands[j].depth })
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	return names
}

// Module returns the scope registered under the dotted module name, or nil.
func (ix *Index) Module(name string) *ModuleScope {
	return ix.modules[name]
}

// ModuleForFile returns the scope of a repo-relative file under its
// preferred module name, or nil if the file is not indexed.
func (ix *Index) ModuleForFile(path string) *ModuleScope {
	names := ix.files[filepath.ToSlash(filepath.Clean(path))]
	if len(names) == 0 {
		return nil
	}
	return ix.modules[names[0]]
}

// Modules returns every registered module name, sorted.
func (ix *Index) Modules() []string {
	out := make([]string, 0, len(ix.modules))
	for name := range ix.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Files returns every indexed file path, sorted.
func (ix *Index) Files() []string {
	out := make([]string, 0, len(ix.files))
	for path := range ix.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// HasModule reports whether module is a local, indexed module.
func (ix *Index) HasModule(module string) bool {
	_, ok := ix.modules[module]
	return ok
}

// AbsoluteModule resolves a relative import specifier against from.
func (ix *Index) AbsoluteModule(from *ModuleScope, level int, module string) string {
	return absoluteModule(from, level, module)
}

// Target is what a name in a module scope ultimately refers to.
type Target struct {
	// Binding is the defining binding. For external symbols it is the import
	// binding that brought the name in; it is nil when a local module was
	// expected to define the name but does not.
	Binding *Binding
	// Scope is the owning module's scope when the target is local.
	Scope *ModuleScope
	// Module is the owning module's dotted name.
	Module string
	// Name is the name the object is defined under in Module.
	Name string
	// Local is true when Module is part of the indexed project.
	Local bool
	// IsModule is true when the name denotes a whole module.
	IsModule bool
}

// Identity names the object the target denotes.
func (t *Target) Identity() string {
	switch {
	case t.IsModule:
		return "module:" + t.Module
	case t.Local && t.Binding != nil:
		return t.Binding.Identity()
	default:
		return t.Module + ":" + t.Name
	}
}

// Resolve follows import and alias chains from name in scope to the
// defining binding. It returns nil for names the scope does not bind
// (builtins, or names bound only inside functions).
func (ix *Index) Resolve(scope *ModuleScope, name string) *Target {
	return ix.resolve(scope, name, 0)
}

func (ix *Index) resolve(scope *ModuleScope, name string, hops int) *Target {
	if scope == nil || hops > maxResolveHops {
		return nil
	}
	b := scope.Lookup(name)
	if b == nil {
		return nil
	}

	switch b.Kind {
	case BindModuleImport:
		return &Target{
			Binding:  b,
			Module:   b.ImportModule,
			Name:     b.Name,
			Local:    ix.HasModule(b.ImportModule),
			IsModule: true,
		}

	case BindSymbolImport:
		abs := absoluteModule(scope, b.Level, b.ImportModule)
		owner := ix.Module(abs)
		if owner == nil {
			return &Target{
				Binding: b,
				Module:  abs,
				Name:    b.ImportName,
				Local:   b.Level > 0,
			}
		}
		if owner.Lookup(b.ImportName) != nil {
			if t := ix.resolve(owner, b.ImportName, hops+1); t != nil {
				return t
			}
		}
		if sub := abs + "." + b.ImportName; ix.HasModule(sub) {
			return &Target{Binding: b, Module: sub, Name: b.Name, Local: true, IsModule: true}
		}
		return &Target{Scope: owner, Module: abs, Name: b.ImportName, Local: true}

	case BindAlias:
		if b.AliasOf != name {
			if t := ix.resolve(scope, b.AliasOf, hops+1); t != nil {
				return t
			}
		}
	}

	return &Target{
		Binding: b,
		Scope:   scope,
		Module:  scope.Module,
		Name:    b.Name,
		Local:   true,
	}
}
