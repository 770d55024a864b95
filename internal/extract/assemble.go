package extract

import (
	"strings"
)

// Render assembles the bundle payload. Sections appear in a fixed order:
// local definitions in dependency order, selective imports, whole-module
// imports, inlined variables, inlined unions, and the entry definition.
func (b *Bundle) Render() string {
	var sections []string
	add := func(lines []string, sep string) {
		if len(lines) > 0 {
			sections = append(sections, strings.Join(lines, sep))
		}
	}

	var local []string
	for _, r := range b.Local {
		local = append(local, r.Statement())
	}
	add(local, "\n\n\n")

	var imports []string
	for _, r := range b.Selective {
		imports = append(imports, r.Statement())
	}
	add(imports, "\n")

	imports = nil
	for _, r := range b.Standard {
		imports = append(imports, r.Statement())
	}
	add(imports, "\n")

	var lines []string
	for _, r := range b.Variables {
		lines = append(lines, r.Statement())
	}
	add(lines, "\n")

	lines = nil
	for _, r := range b.Unions {
		lines = append(lines, r.Statement())
	}
	add(lines, "\n")

	add([]string{strings.TrimRight(b.EntrySource, "\n")}, "")
	return strings.Join(sections, "\n\n\n") + "\n"
}

// Statement renders the Python that binds the reference's names.
func (r *SymbolReference) Statement() string {
	var stmt string
	defined := r.Name
	switch {
	case r.IsLocal:
		stmt = strings.TrimRight(r.SourceText, "\n")
		if stmt == "" {
			stmt = r.Declaration
		}
		defined = r.Symbol
	case r.ImportKind == ImportStandard:
		stmt = importStatement(r.OriginModule, r.Name)
	case r.ImportKind == ImportSelective:
		stmt = "from " + r.OriginModule + " import " + r.Symbol
		if r.Symbol != r.Name {
			stmt += " as " + r.Name
		}
	default:
		stmt = r.SourceText
	}

	var aliases []string
	for _, name := range r.Names() {
		if name != defined {
			aliases = append(aliases, name+" = "+defined)
		}
	}
	if len(aliases) == 0 {
		return stmt
	}
	return stmt + "\n" + strings.Join(aliases, "\n")
}

// importStatement renders the import that binds name to module.
func importStatement(module, name string) string {
	if module == name || strings.HasPrefix(module, name+".") {
		return "import " + module
	}
	return "import " + module + " as " + name
}

// stripDecorators drops the first n lines of a decorated definition.
func stripDecorators(source string, n int) string {
	if n <= 0 {
		return source
	}
	lines := strings.SplitAfter(source, "\n")
	if n >= len(lines) {
		return ""
	}
	return strings.Join(lines[n:], "")
}
