package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/pybundle/internal/graph"
)

// inliner renders variable bindings as single assignment lines. String
// constants naming a YAML file are replaced by the file's parsed contents.
type inliner struct {
	dir    string // absolute directory YAML names are relative to
	suffix string

	// parsed holds the rendered literal per YAML path; a path that does not
	// exist maps to "". Each file is read at most once.
	parsed map[string]string
}

func newInliner(dir, suffix string) *inliner {
	return &inliner{dir: dir, suffix: suffix, parsed: make(map[string]string)}
}

// constant renders the value of a constant binding. Literals are copied as
// written unless they name a YAML file. missing is true when the value names
// a YAML file that does not exist.
func (in *inliner) constant(b *graph.Binding) (value string, missing bool, err error) {
	if b.LiteralKind != graph.LitString {
		return b.Literal, false, nil
	}
	s, _ := b.Value.(string)
	if in.suffix != "" && strings.HasSuffix(s, in.suffix) {
		lit, found, err := in.yamlLiteral(s)
		if err != nil {
			return "", false, err
		}
		if found {
			return lit, false, nil
		}
		missing = true
	}
	return b.Literal, missing, nil
}

// yamlLiteral loads name relative to the YAML directory and renders it as a
// Python literal.
func (in *inliner) yamlLiteral(name string) (string, bool, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(in.dir, name)
	}
	if lit, ok := in.parsed[path]; ok {
		return lit, lit != "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		in.parsed[path] = ""
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("parse %s: %w", path, err)
	}
	lit, err := YAMLToPython(&doc)
	if err != nil {
		return "", false, fmt.Errorf("render %s: %w", path, err)
	}
	in.parsed[path] = lit
	return lit, true, nil
}

// call re-stringifies a constructor call: Cls(arg, kw=expr). Argument
// expressions are copied as written, never evaluated.
func call(b *graph.Binding) string {
	args := make([]string, 0, len(b.CallArgs)+len(b.CallKeywords))
	args = append(args, b.CallArgs...)
	for _, kw := range b.CallKeywords {
		args = append(args, kw.Name+"="+kw.Value)
	}
	return b.CallClass + "(" + strings.Join(args, ", ") + ")"
}

// union renders a union binding as Union[A, B].
func union(b *graph.Binding) string {
	return "Union[" + strings.Join(b.Members, ", ") + "]"
}

// expression returns the right-hand side of an assignment binding.
func expression(b *graph.Binding) string {
	return strings.TrimPrefix(b.Source, b.Name+" = ")
}

// YAMLToPython renders a parsed YAML document as a Python literal. Mapping
// order is preserved.
func YAMLToPython(n *yaml.Node) (string, error) {
	switch n.Kind {
	case 0:
		return "None", nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return "None", nil
		}
		return YAMLToPython(n.Content[0])
	case yaml.AliasNode:
		return YAMLToPython(n.Alias)
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			s, err := YAMLToPython(c)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case yaml.MappingNode:
		pairs, err := yamlPairs(n)
		if err != nil {
			return "", err
		}
		return "{" + strings.Join(pairs, ", ") + "}", nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return "", fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func yamlPairs(n *yaml.Node) ([]string, error) {
	var pairs []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if key.ShortTag() == "!!merge" {
			merged := value
			if merged.Kind == yaml.AliasNode {
				merged = merged.Alias
			}
			if merged.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: merge value is not a mapping", key.Line)
			}
			inner, err := yamlPairs(merged)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, inner...)
			continue
		}
		k, err := YAMLToPython(key)
		if err != nil {
			return nil, err
		}
		v, err := YAMLToPython(value)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, k+": "+v)
	}
	return pairs, nil
}

func yamlScalar(n *yaml.Node) (string, error) {
	switch n.ShortTag() {
	case "!!null":
		return "None", nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return "", err
		}
		if b {
			return "True", nil
		}
		return "False", nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return strings.ReplaceAll(n.Value, "_", ""), nil
		}
		return strconv.FormatInt(i, 10), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return "", err
		}
		return pyFloat(f), nil
	default:
		return strconv.Quote(n.Value), nil
	}
}

// pyFloat formats f the way Python's repr does for the common cases.
func pyFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return `float("inf")`
	case math.IsInf(f, -1):
		return `float("-inf")`
	case math.IsNaN(f):
		return `float("nan")`
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
