package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pybundle/internal/graph"
)

const fixtureRoot = "../../testdata/fixtures/py_project"

// newExtractor indexes root and returns an Extractor over it.
func newExtractor(t *testing.T, root string, opts Options) *Extractor {
	t.Helper()
	loc, err := graph.NewLocality(root, nil)
	require.NoError(t, err)
	ix, err := graph.NewIndexer(graph.NewTreeSitterParser(), loc, graph.IndexerOptions{RespectGitignore: true})
	require.NoError(t, err)
	build, err := ix.Build(context.Background())
	require.NoError(t, err)
	return New(build.Index, loc, opts)
}

// writeProject lays files out under a fresh temporary root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func extractProject(t *testing.T, files map[string]string, entry string, opts Options) (*Bundle, error) {
	t.Helper()
	root := writeProject(t, files)
	ref, err := ParseEntryRef(entry)
	require.NoError(t, err)
	return newExtractor(t, root, opts).Extract(context.Background(), ref)
}

func mustExtract(t *testing.T, files map[string]string, entry string, opts Options) *Bundle {
	t.Helper()
	b, err := extractProject(t, files, entry, opts)
	require.NoError(t, err)
	return b
}

func names(refs []SymbolReference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func sourceLines(refs []SymbolReference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.SourceText
	}
	return out
}

func find(refs []SymbolReference, name string) *SymbolReference {
	for i := range refs {
		if refs[i].Name == name {
			return &refs[i]
		}
	}
	return nil
}

func TestExtract_Fixture(t *testing.T) {
	ex := newExtractor(t, fixtureRoot, Options{YAMLDir: "src/demo"})
	b, err := ex.Extract(context.Background(), EntryRef{File: "src/demo/pipeline.py", Name: "run"})
	require.NoError(t, err)

	assert.Equal(t, "run", b.EntryName)
	assert.Equal(t, "demo.pipeline", b.EntryModule)
	assert.Equal(t, "function", b.EntryKind)
	assert.True(t, strings.HasPrefix(b.EntrySource, "def run("), "decorators are removed")
	assert.Equal(t, []graph.Param{
		{Name: "data", Annotation: "Payload"},
		{Name: "factor", Annotation: "int", Default: "2"},
	}, b.Parameters)

	assert.ElementsMatch(t, []string{"Model", "normalize", "scale", "T"}, b.LocalNames())
	pos := positions(b.Local)
	assert.Less(t, pos["normalize"], pos["scale"])
	for _, r := range b.Local {
		assert.True(t, r.IsLocal)
		if r.Name == "T" {
			assert.Empty(t, r.SourceText)
			assert.Equal(t, `T = TypeVar("T")`, r.Declaration)
			continue
		}
		assert.NotEmpty(t, r.SourceText, r.Name)
	}
	assert.Equal(t, []string{"normalize"}, b.Graph["scale"])

	assert.Equal(t, []string{"dataclass", "TypeA", "TypeB", "TypeVar", "Union"}, names(b.Selective))
	for _, r := range b.Selective {
		assert.False(t, r.IsLocal, r.Name)
	}
	assert.Equal(t, "demo.types", find(b.Selective, "TypeA").OriginModule)

	assert.Equal(t, []string{"os", "requests", "math", "helpers"}, names(b.Standard))
	assert.False(t, find(b.Standard, "requests").IsLocal, "vendored packages are not local")
	assert.True(t, find(b.Standard, "helpers").IsLocal)

	assert.Equal(t, []string{
		"threshold = 2",
		`config_path = {"x": 1}`,
		`model = Model(layers=3, name="demo")`,
		"SCALE = 10",
	}, sourceLines(b.Variables))
	assert.Equal(t, []string{"Payload = Union[TypeA, TypeB]"}, sourceLines(b.Unions))

	assert.Nil(t, find(b.References(), "logger"), "logger is excluded")
	assert.True(t, b.HasDiagnostic(ErrAmbiguousBinding, "threshold"))

	out := b.Render()
	order := []string{
		"@dataclass\nclass Model:",
		"def normalize(x):",
		"def scale(x):",
		"from dataclasses import dataclass",
		"import os",
		"import demo.helpers as helpers",
		"threshold = 2",
		"Payload = Union[TypeA, TypeB]",
		"def run(data: Payload",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		require.GreaterOrEqual(t, i, 0, "missing %q", s)
		assert.Greater(t, i, last, "%q out of order", s)
		last = i
	}
	assert.Less(t, strings.Index(out, `T = TypeVar("T")`), strings.Index(out, "from dataclasses import dataclass"))
	assert.NotContains(t, out, "@remote")
}

func TestExtract_NamesAreUnique(t *testing.T) {
	ex := newExtractor(t, fixtureRoot, Options{YAMLDir: "src/demo"})
	b, err := ex.Extract(context.Background(), EntryRef{Module: "demo.pipeline", Name: "run"})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, r := range b.References() {
		for _, n := range r.Names() {
			assert.False(t, seen[n], "duplicate name %s", n)
			seen[n] = true
		}
	}
}

func TestExtract_MutualRecursionIsCyclic(t *testing.T) {
	_, err := extractProject(t, map[string]string{
		"app/mod.py": `def ping(n):
    return pong(n - 1) if n else 0


def pong(n):
    return ping(n - 1) if n else 1


def entry():
    return ping(3)
`,
	}, "app.mod:entry", Options{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCyclicLocalDependency))
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Len(t, cycle.Cycle, 3)
	assert.Equal(t, cycle.Cycle[0], cycle.Cycle[2])
	assert.ElementsMatch(t, []string{"ping", "pong"}, cycle.Cycle[:2])
}

func TestExtract_SelfRecursionIsFine(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/mod.py": `def fact(n):
    return 1 if n <= 1 else n * fact(n - 1)


def entry():
    return fact(5)
`,
	}, "app.mod:entry", Options{})
	assert.Equal(t, []string{"fact"}, b.LocalNames())
}

func TestExtract_YAMLConstant(t *testing.T) {
	files := map[string]string{
		"src/proj/main.py": `config_path = "settings.yaml"


def run():
    return load(config_path)
`,
	}

	t.Run("file exists", func(t *testing.T) {
		withYAML := map[string]string{"src/proj/settings.yaml": "x: 1\n"}
		for k, v := range files {
			withYAML[k] = v
		}
		b := mustExtract(t, withYAML, "src/proj/main.py:run", Options{YAMLDir: "src/proj"})
		require.Len(t, b.Variables, 1)
		assert.Equal(t, `config_path = {"x": 1}`, b.Variables[0].SourceText)
		assert.Empty(t, b.Diagnostics)
	})

	t.Run("file missing", func(t *testing.T) {
		b := mustExtract(t, files, "src/proj/main.py:run", Options{YAMLDir: "src/proj"})
		require.Len(t, b.Variables, 1)
		assert.Equal(t, `config_path = "settings.yaml"`, b.Variables[0].SourceText)
		assert.True(t, b.HasDiagnostic(ErrMissingYAMLFile, "config_path"))
	})

	t.Run("default directory follows the root name", func(t *testing.T) {
		root := writeProject(t, map[string]string{
			"main.py": files["src/proj/main.py"],
		})
		dir := filepath.Join(root, "src", filepath.Base(root))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("x: 1\n"), 0o644))

		b, err := newExtractor(t, root, Options{}).Extract(context.Background(), EntryRef{Module: "main", Name: "run"})
		require.NoError(t, err)
		assert.Equal(t, `config_path = {"x": 1}`, b.Variables[0].SourceText)
	})

	t.Run("other suffixes stay strings", func(t *testing.T) {
		b := mustExtract(t, map[string]string{
			"src/proj/main.py": "path = \"data.json\"\n\n\ndef run():\n    return path\n",
		}, "src/proj/main.py:run", Options{YAMLDir: "src/proj"})
		assert.Equal(t, `path = "data.json"`, b.Variables[0].SourceText)
	})
}

func TestExtract_SameObjectTwoNames(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/__init__.py": "",
		"app/helpers.py":  "def scale(x):\n    return x * 2\n",
		"app/main.py": `from .helpers import scale
from .helpers import scale as rescale


def run(x):
    return scale(x) + rescale(x)
`,
	}, "app.main:run", Options{})

	var matches []SymbolReference
	for _, r := range b.References() {
		if r.Identity() == "app/helpers.py:scale" {
			matches = append(matches, r)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, "scale", matches[0].Name, "keyed by the first name")
	assert.Equal(t, []string{"rescale"}, matches[0].Aliases)
	assert.Contains(t, matches[0].Statement(), "rescale = scale")
}

func TestExtract_AliasFirstKeepsDefinitionName(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/helpers.py": "def helper():\n    return 1\n",
		"app/main.py": `from app.helpers import helper as h


def run():
    return h()
`,
	}, "app.main:run", Options{})

	require.Len(t, b.Local, 1)
	r := b.Local[0]
	assert.Equal(t, "h", r.Name)
	assert.Equal(t, "helper", r.Symbol)
	assert.Equal(t, "def helper():\n    return 1\nh = helper", r.Statement())
}

func TestExtract_LastWriteWins(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"main.py": `threshold = 1
threshold = 2


def run(x):
    return x > threshold
`,
	}, "main:run", Options{})

	assert.Equal(t, []string{"threshold = 2"}, sourceLines(b.Variables))
	assert.True(t, b.HasDiagnostic(ErrAmbiguousBinding, "threshold"))
}

func TestExtract_UnionMembers(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"main.py": `from typing import Union
from shapes import TypeA, TypeB

Shape = Union[TypeA, TypeB]


def area(s: Shape) -> float:
    return s.area()
`,
	}, "main:area", Options{})

	require.Len(t, b.Unions, 1)
	assert.Equal(t, ImportUnion, b.Unions[0].ImportKind)
	assert.Equal(t, "Shape = Union[TypeA, TypeB]", b.Unions[0].SourceText)

	var members []SymbolReference
	for _, r := range b.Selective {
		if r.Name == "TypeA" || r.Name == "TypeB" {
			members = append(members, r)
		}
	}
	require.Len(t, members, 2)
	for _, m := range members {
		assert.False(t, m.IsLocal)
		assert.Equal(t, "shapes", m.OriginModule)
	}
	assert.NotNil(t, find(b.Selective, "Union"))
}

func TestExtract_OptionalAndPipeUnions(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"main.py": `from typing import Optional
from models import Item

MaybeItem = Optional[Item]
Key = str | None


def get(k: Key) -> MaybeItem:
    return None
`,
	}, "main:get", Options{})

	assert.ElementsMatch(t, []string{
		"MaybeItem = Union[Item, None]",
		"Key = Union[str, None]",
	}, sourceLines(b.Unions))
	assert.NotNil(t, find(b.Selective, "Item"))
	assert.Nil(t, find(b.Selective, "str"), "builtins need no import")
}

func TestExtract_CallAssignment(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/main.py": `from clients import Client

API_URL = "https://example.test"


class Settings:
    def __init__(self, url, retries=3):
        self.url = url
        self.retries = retries


settings = Settings(url=API_URL, retries=5)
client = Client(settings.url)
unused = Settings(url="x")


def run():
    return client.get(settings.url)
`,
	}, "app/main.py:run", Options{})

	assert.Equal(t, []string{"Settings"}, b.LocalNames())
	assert.Equal(t, []string{
		`API_URL = "https://example.test"`,
		"settings = Settings(url=API_URL, retries=5)",
		"client = Client(settings.url)",
	}, sourceLines(b.Variables))
	assert.NotNil(t, find(b.Selective, "Client"))
	assert.Nil(t, find(b.Variables, "unused"), "only mentioned assignments are inlined")
}

func TestExtract_VariablesFollowWhatTheyRead(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/limits.py": `BASE = 5
LIMIT = BASE * 2
SCALED = LIMIT + BASE
`,
		"app/main.py": `from app.limits import SCALED, LIMIT


def run(n):
    return min(n, SCALED, LIMIT)
`,
	}, "app/main.py:run", Options{})

	assert.Equal(t, []string{
		"BASE = 5",
		"LIMIT = BASE * 2",
		"SCALED = LIMIT + BASE",
	}, sourceLines(b.Variables))

	out := b.Render()
	assert.Less(t, strings.Index(out, "BASE = 5"), strings.Index(out, "LIMIT = BASE * 2"))
	assert.Less(t, strings.Index(out, "LIMIT = BASE * 2"), strings.Index(out, "SCALED = LIMIT + BASE"))
}

func TestExtract_TypeVar(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"main.py": `from typing import TypeVar, List

T = TypeVar("T")


def first(items: List[T]) -> T:
    return items[0]
`,
	}, "main:first", Options{})

	tv := find(b.Local, "T")
	require.NotNil(t, tv)
	assert.True(t, tv.IsLocal)
	assert.Empty(t, tv.SourceText)
	assert.Equal(t, `T = TypeVar("T")`, tv.Statement())
	assert.NotNil(t, find(b.Selective, "TypeVar"))
	assert.NotNil(t, find(b.Selective, "List"))
}

func TestExtract_ExclusionsAndDunders(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"main.py": `import logging

__version__ = "1.0"
logger = logging.getLogger(__name__)
tracer = object()


def run():
    logger.info(__version__)
    return tracer
`,
	}, "main:run", Options{ExcludeNames: []string{"logger", "tracer"}})

	assert.Empty(t, b.References())
}

func TestExtract_UnresolvableDegrades(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/__init__.py": "",
		"app/helpers.py":  "def present():\n    return 1\n",
		"app/main.py": `from .helpers import present, missing


def run():
    return present() + missing()
`,
	}, "app.main:run", Options{})

	assert.Equal(t, []string{"present"}, b.LocalNames())
	m := find(b.Selective, "missing")
	require.NotNil(t, m)
	assert.Equal(t, "app.helpers", m.OriginModule)
	assert.True(t, b.HasDiagnostic(ErrUnresolvableSource, "missing"))
}

func TestExtract_SymbolsOfWholeImportedModuleAreSkipped(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"app/__init__.py": "",
		"app/helpers.py":  "def scale(x):\n    return x\n",
		"app/main.py": `from app import helpers
from app.helpers import scale


def run(x):
    return helpers.scale(x) + scale(x)
`,
	}, "app.main:run", Options{})

	assert.Equal(t, []string{"helpers"}, names(b.Standard))
	assert.Empty(t, b.Local)
}

func TestExtract_ClassEntry(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"agents.py": `from framework import register


def tool(x):
    return x


@register
class Agent:
    def __init__(self, name: str, temperature: float = 0.5):
        self.name = name

    @staticmethod
    def helper():
        return tool(1)
`,
	}, "agents.py:Agent", Options{})

	assert.Equal(t, "class", b.EntryKind)
	assert.True(t, strings.HasPrefix(b.EntrySource, "class Agent:"))
	assert.Contains(t, b.EntrySource, "@staticmethod", "only leading decorators are removed")
	assert.Equal(t, []graph.Param{
		{Name: "name", Annotation: "str"},
		{Name: "temperature", Annotation: "float", Default: "0.5"},
	}, b.Parameters)
	assert.Equal(t, []string{"tool"}, b.LocalNames())
	assert.Nil(t, find(b.Selective, "register"), "decorators are not dependencies")
}

func TestExtract_ClassEntryKeepsMethodDecorators(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"jobs.py": `from framework import register, schedule


@register
@schedule(
    every=5,
)
class Job:
    @property
    def name(self):
        return "job"

    @classmethod
    def create(cls):
        return cls()

    @staticmethod
    def run():
        return 1
`,
	}, "jobs.py:Job", Options{})

	want := `class Job:
    @property
    def name(self):
        return "job"

    @classmethod
    def create(cls):
        return cls()

    @staticmethod
    def run():
        return 1`
	assert.Equal(t, want, b.EntrySource)
	assert.True(t, strings.HasSuffix(b.Render(), "\n"+want+"\n"))
	assert.NotContains(t, b.Render(), "@register")
	assert.NotContains(t, b.Render(), "every=5")
}

func TestExtract_ReexportedEntry(t *testing.T) {
	b := mustExtract(t, map[string]string{
		"pkg/__init__.py": "from .impl import run\n",
		"pkg/impl.py":     "def run():\n    return 1\n",
	}, "pkg:run", Options{})
	assert.Equal(t, "pkg.impl", b.EntryModule)
}

func TestExtract_EntryErrors(t *testing.T) {
	files := map[string]string{
		"main.py": "VALUE = 1\n\n\ndef run():\n    return VALUE\n",
	}
	root := writeProject(t, files)
	ex := newExtractor(t, root, Options{})
	ctx := context.Background()

	for _, ref := range []EntryRef{
		{Module: "nope", Name: "run"},
		{Module: "main", Name: "missing"},
		{Module: "main", Name: "VALUE"},
		{File: "other.py", Name: "run"},
	} {
		t.Run(ref.String(), func(t *testing.T) {
			_, err := ex.Extract(ctx, ref)
			assert.ErrorIs(t, err, ErrEntryNotFound)
		})
	}

	t.Run("absolute file path", func(t *testing.T) {
		b, err := ex.Extract(ctx, EntryRef{File: filepath.Join(root, "main.py"), Name: "run"})
		require.NoError(t, err)
		assert.Equal(t, "run", b.EntryName)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ex.Extract(cctx, EntryRef{Module: "main", Name: "run"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtract_Deterministic(t *testing.T) {
	ex := newExtractor(t, fixtureRoot, Options{YAMLDir: "src/demo"})
	ref := EntryRef{Module: "demo.pipeline", Name: "run"}
	first, err := ex.Extract(context.Background(), ref)
	require.NoError(t, err)
	second, err := ex.Extract(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, first.Render(), second.Render())
}

func TestParseEntryRef(t *testing.T) {
	tests := []struct {
		in      string
		want    EntryRef
		wantErr bool
	}{
		{"pkg.mod:run", EntryRef{Module: "pkg.mod", Name: "run"}, false},
		{"src/pkg/mod.py:Agent", EntryRef{File: "src/pkg/mod.py", Name: "Agent"}, false},
		{"mod.py:run", EntryRef{File: "mod.py", Name: "run"}, false},
		{"pkg.mod", EntryRef{}, true},
		{":run", EntryRef{}, true},
		{"pkg.mod:", EntryRef{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntryRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}
