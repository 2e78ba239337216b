//go:build !lean

package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/domain/catalog"
	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
	"github.com/corey/codeguard/internal/ports"
	"github.com/corey/codeguard/rulepack"
)

type fixture struct {
	eng *Engine
	cat *catalog.Catalog
	reg *treesitter.Registry
	gen *querygen.Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rules, err := rule.LoadRulesFromFS(rulepack.FS, rulepack.RulesDir)
	require.NoError(t, err)
	adapters, err := language.LoadAdaptersFromFS(rulepack.FS, rulepack.AdaptersDir)
	require.NoError(t, err)

	cat := catalog.New()
	require.NoError(t, cat.Load(rules, adapters))
	reg := treesitter.NewRegistry()
	t.Cleanup(reg.Close)
	gen := querygen.NewGenerator()
	return &fixture{eng: New(reg, cat, gen), cat: cat, reg: reg, gen: gen}
}

func (f *fixture) rules(t *testing.T, names ...string) []*rule.Definition {
	t.Helper()
	out := make([]*rule.Definition, 0, len(names))
	for _, n := range names {
		d, ok := f.cat.Rule(n)
		require.True(t, ok, "rule %s", n)
		out = append(out, d)
	}
	return out
}

func (f *fixture) analyze(t *testing.T, path, lang, src string, rules ...*rule.Definition) []rule.Violation {
	t.Helper()
	vs, err := f.eng.Analyze(path, []byte(src), lang, rules)
	require.NoError(t, err)
	return vs
}

func systemErrors(vs []rule.Violation) []rule.Violation {
	var out []rule.Violation
	for _, v := range vs {
		if v.IsSystemError {
			out = append(out, v)
		}
	}
	return out
}

func rawRule(name, query string) *rule.Definition {
	return &rule.Definition{
		Name:        name,
		Severity:    rule.SeverityWarning,
		PatternType: rule.FunctionCall,
		Message:     name + " hit",
		Config:      rule.PatternConfig{Query: query, Shape: rule.CallShape{}},
	}
}

// =============================================================================
// Entry conditions
// =============================================================================

func TestAnalyze_EmptyRulesDoesNoWork(t *testing.T) {
	f := newFixture(t)
	vs, err := f.eng.Analyze("x.cob", []byte("IDENTIFICATION DIVISION."), "cobol", nil)
	require.NoError(t, err)
	assert.Nil(t, vs)
}

func TestAnalyze_UnsupportedLanguage(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Analyze("x.cob", []byte("x"), "cobol", f.rules(t, "no-eval"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, treesitter.ErrUnsupportedLanguage))
}

// =============================================================================
// Detection
// =============================================================================

func TestAnalyze_MultiNameExpansion(t *testing.T) {
	f := newFixture(t)
	src := "x = 1\neval(a)\nexec(b)\n"
	vs := f.analyze(t, "m.py", "python", src, f.rules(t, "no-eval")...)
	require.Len(t, vs, 2)
	assert.Equal(t, 2, vs[0].Line)
	assert.Equal(t, "eval(a)", vs[0].Snippet)
	assert.Equal(t, 3, vs[1].Line)
	assert.Equal(t, "exec(b)", vs[1].Snippet)
	for _, v := range vs {
		assert.Equal(t, 0, v.Column)
		assert.Equal(t, "no-eval", v.Rule)
		assert.Equal(t, rule.SeverityCritical, v.Severity)
		assert.False(t, v.IsSystemError)
		assert.Equal(t, "m.py", v.File)
		assert.Equal(t, "python", v.Language)
	}
}

func TestAnalyze_CrossLanguageEquivalence(t *testing.T) {
	f := newFixture(t)
	noEval := f.rules(t, "no-eval")

	js := f.analyze(t, "a.js", "javascript", "const r = eval(userInput);\n", noEval...)
	require.Len(t, js, 1)
	assert.Equal(t, "eval(userInput)", js[0].Snippet)
	assert.Equal(t, 10, js[0].Column)

	py := f.analyze(t, "a.py", "python", "r = eval(user_input)\n", noEval...)
	require.Len(t, py, 1)
	assert.Equal(t, "eval(user_input)", py[0].Snippet)
}

func TestAnalyze_EmptyCatch(t *testing.T) {
	f := newFixture(t)
	rules := f.rules(t, "no-empty-catch")

	tests := []struct {
		name string
		path string
		lang string
		src  string
		line int
	}{
		{
			name: "javascript",
			path: "a.js",
			lang: "javascript",
			src:  "try { a(); } catch (e) {}\ntry { b(); } catch (e) { console.error(e); }\n",
			line: 1,
		},
		{
			name: "python",
			path: "a.py",
			lang: "python",
			src: "try:\n    a()\nexcept ValueError:\n    pass\n" +
				"try:\n    b()\nexcept Exception as e:\n    logging.error(e)\n",
			line: 3,
		},
		{
			name: "java",
			path: "A.java",
			lang: "java",
			src: "class A {\n  void f() {\n    try { a(); } catch (Exception e) {}\n" +
				"    try { b(); } catch (Exception e) { log(e); }\n  }\n}\n",
			line: 3,
		},
		{
			name: "go",
			path: "a.go",
			lang: "go",
			src: "package main\n\nfunc f() {\n\terr := g()\n\tif err != nil {\n\t}\n" +
				"\tif err != nil {\n\t\tlog(err)\n\t}\n}\n",
			line: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := f.analyze(t, tt.path, tt.lang, tt.src, rules...)
			require.Len(t, vs, 1)
			assert.Equal(t, tt.line, vs[0].Line)
			assert.False(t, vs[0].IsSystemError)
		})
	}
}

func TestAnalyze_LanguageOverrides(t *testing.T) {
	f := newFixture(t)
	rules := f.rules(t, "no-console-log")

	js := f.analyze(t, "a.js", "javascript", "console.log(1);\nconsole.error(2);\n", rules...)
	require.Len(t, js, 1)
	assert.Equal(t, "console.log(1)", js[0].Snippet)

	py := f.analyze(t, "a.py", "python", "print('x')\nconsole.log(1)\n", rules...)
	require.Len(t, py, 1)
	assert.Equal(t, "print('x')", py[0].Snippet)

	java := f.analyze(t, "A.java", "java",
		"class A {\n  void f() {\n    System.out.println(\"x\");\n  }\n}\n", rules...)
	require.Len(t, java, 1)
	assert.Equal(t, 3, java[0].Line)
	assert.Equal(t, "f", java[0].Symbol)

	goSrc := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"x\")\n\tfmt.Printf(\"y\")\n}\n"
	g := f.analyze(t, "main.go", "go", goSrc, rules...)
	require.Len(t, g, 1)
	assert.Equal(t, 6, g[0].Line)
	assert.Equal(t, "main", g[0].Symbol)
}

func TestAnalyze_LanguageRestriction(t *testing.T) {
	f := newFixture(t)
	src := "class A {\n  void f() {\n    eval(x);\n  }\n}\n"
	vs := f.analyze(t, "A.java", "java", src, f.rules(t, "no-eval")...)
	assert.Empty(t, vs)
}

func TestAnalyze_EnclosingSymbolAndOrder(t *testing.T) {
	f := newFixture(t)
	src := "function outer() {\n  eval(a);\n  debugger;\n}\neval(b);\n"
	vs := f.analyze(t, "a.js", "javascript", src, f.rules(t, "no-eval", "no-debugger")...)
	require.Len(t, vs, 3)

	assert.Equal(t, "no-eval", vs[0].Rule)
	assert.Equal(t, 2, vs[0].Line)
	assert.Equal(t, 2, vs[0].Column)
	assert.Equal(t, "outer", vs[0].Symbol)

	assert.Equal(t, "no-debugger", vs[1].Rule)
	assert.Equal(t, 3, vs[1].Line)
	assert.Equal(t, "outer", vs[1].Symbol)

	assert.Equal(t, "no-eval", vs[2].Rule)
	assert.Equal(t, 5, vs[2].Line)
	assert.Equal(t, "", vs[2].Symbol)
}

func TestAnalyze_Idempotent(t *testing.T) {
	f := newFixture(t)
	src := "var password = \"hunter2\";\nif (a == b) { eval(a); }\n// TODO: fix\n"
	rules := f.cat.Rules(catalog.Filter{})
	first := f.analyze(t, "a.js", "javascript", src, rules...)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		again := f.analyze(t, "a.js", "javascript", src, rules...)
		assert.Equal(t, first, again)
	}
}

func TestAnalyze_Filters(t *testing.T) {
	f := newFixture(t)
	src := "def many(a, b, c, d, e, g):\n    pass\n\ndef few(a):\n    pass\n"
	vs := f.analyze(t, "m.py", "python", src, f.rules(t, "max-parameters")...)
	require.Len(t, vs, 1)
	assert.Equal(t, 1, vs[0].Line)
	assert.Equal(t, "many", vs[0].Symbol)

	xor := f.analyze(t, "m.py", "python", "a = 2 ^ 8\nb = x ^ y\n", f.rules(t, "suspicious-xor")...)
	require.Len(t, xor, 1)
	assert.Equal(t, "2 ^ 8", xor[0].Snippet)
}

// =============================================================================
// Fault isolation
// =============================================================================

func TestAnalyze_FaultIsolation(t *testing.T) {
	f := newFixture(t)
	broken := rawRule("broken-query", "(call_expression function: (identifier")
	rules := []*rule.Definition{f.rules(t, "no-eval")[0], broken, f.rules(t, "no-debugger")[0]}

	vs := f.analyze(t, "a.js", "javascript", "eval(x);\ndebugger;\n", rules...)
	require.Len(t, vs, 3)

	sys := systemErrors(vs)
	require.Len(t, sys, 1)
	assert.Equal(t, "broken-query", sys[0].Rule)
	assert.Equal(t, 1, sys[0].Line)
	assert.Equal(t, 0, sys[0].Column)
	assert.Contains(t, sys[0].Message, "broken-query")

	var rulesHit []string
	for _, v := range vs {
		if !v.IsSystemError {
			rulesHit = append(rulesHit, v.Rule)
		}
	}
	assert.ElementsMatch(t, []string{"no-eval", "no-debugger"}, rulesHit)
}

func TestAnalyze_UnfilledTemplateIsSystemError(t *testing.T) {
	f := newFixture(t)
	noOp := &rule.Definition{
		Name:        "binary-without-operator",
		PatternType: rule.BinaryExpression,
		Config:      rule.PatternConfig{Shape: rule.BinaryShape{}},
	}
	vs := f.analyze(t, "m.py", "python", "a = 1 + 2\n", noOp)
	require.Len(t, vs, 1)
	assert.True(t, vs[0].IsSystemError)
}

func TestAnalyze_BadFilterIsSystemError(t *testing.T) {
	f := newFixture(t)
	d := rawRule("bad-filter", `(call_expression) @match`)
	d.Config.Filter = "text >"
	vs := f.analyze(t, "a.js", "javascript", "a();\nb();\n", d)
	require.Len(t, vs, 1)
	assert.True(t, vs[0].IsSystemError)
}

func TestAnalyze_TemplateNotFoundIsSilent(t *testing.T) {
	f := newFixture(t)
	vs := f.analyze(t, "a.go", "go", "package main\n\nfunc f() {\n\tfor {\n\t}\n}\n",
		f.rules(t, "no-await-in-loop", "no-nested-ternary")...)
	assert.Empty(t, vs)
}

// =============================================================================
// Anchor capture selection
// =============================================================================

func TestAnalyze_AnchorCapture(t *testing.T) {
	f := newFixture(t)
	src := "foo(eval);\n"

	target := rawRule("anchor-target", `(call_expression function: (identifier) @fn arguments: (arguments (identifier) @target))`)
	vs := f.analyze(t, "a.js", "javascript", src, target)
	require.Len(t, vs, 1)
	assert.Equal(t, "eval", vs[0].Snippet)
	assert.Equal(t, 4, vs[0].Column)

	first := rawRule("anchor-first", `(call_expression function: (identifier) @fn)`)
	vs = f.analyze(t, "a.js", "javascript", src, first)
	require.Len(t, vs, 1)
	assert.Equal(t, "foo", vs[0].Snippet)

	none := rawRule("anchor-none", `(call_expression)`)
	vs = f.analyze(t, "a.js", "javascript", src, none)
	assert.Empty(t, vs)
}

func TestAnalyze_PrefilterKeepsResultsExact(t *testing.T) {
	f := newFixture(t)
	rules := f.rules(t, "no-eval", "no-document-write")
	assert.Empty(t, f.analyze(t, "a.js", "javascript", "document.title = 'x';\n", rules...))

	vs := f.analyze(t, "a.js", "javascript", "document.write(evaluate);\n", rules...)
	require.Len(t, vs, 1)
	assert.Equal(t, "no-document-write", vs[0].Rule)
}

type blindMatcher struct{ seen []string }

func (m *blindMatcher) Present([]byte) map[string]bool { return nil }
func (m *blindMatcher) Len() int                       { return len(m.seen) }

func TestAnalyze_LiteralMatcherDecidesSkips(t *testing.T) {
	f := newFixture(t)
	m := &blindMatcher{}
	eng := New(f.reg, f.cat, f.gen, WithLiteralMatcher(func(lits []string) ports.LiteralMatcher {
		m.seen = append(m.seen, lits...)
		return m
	}))

	vs, err := eng.Analyze("a.js", []byte("eval(x);\n"), "javascript", f.rules(t, "no-eval"))
	require.NoError(t, err)
	assert.Empty(t, vs, "a matcher that finds no literal skips the rule")
	assert.Contains(t, m.seen, "eval")
}

// =============================================================================
// Bundled pack
// =============================================================================

func TestBundledPack_EveryGeneratedQueryCompiles(t *testing.T) {
	f := newFixture(t)
	for _, a := range f.cat.Adapters() {
		assert.Empty(t, language.Validate(a, f.reg), a.Language)
		assert.Empty(t, f.gen.Check(f.cat.Rules(catalog.Filter{}), a), a.Language)
		for _, d := range f.cat.Rules(catalog.Filter{}) {
			q, err := f.gen.Query(d, a)
			if querygen.Skippable(err) {
				continue
			}
			require.NoError(t, err, "%s/%s", d.Name, a.Language)
			_, err = f.reg.Compile(a.GrammarName(), q.Query)
			assert.NoError(t, err, "%s/%s:\n%s", d.Name, a.Language, q.Query)
		}
	}
}

func TestBundledPack_EveryTemplateCompiles(t *testing.T) {
	f := newFixture(t)
	b := rule.Bindings{
		Names: []string{"x"},
		Values: map[string]string{
			rule.PlaceholderPattern:  "x",
			rule.PlaceholderObject:   "x",
			rule.PlaceholderMethod:   "x",
			rule.PlaceholderOperator: "^",
		},
	}
	for _, a := range f.cat.Adapters() {
		for _, key := range a.TemplateKeys() {
			q, err := querygen.Interpolate(key, a.Templates[key], b)
			require.NoError(t, err, "%s/%s", a.Language, key)
			_, err = f.reg.Compile(a.GrammarName(), q)
			assert.NoError(t, err, "%s/%s", a.Language, key)
		}
	}
}

func TestAnalyze_LogsSyntaxErrors(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.DebugLevel)
	eng := New(f.reg, f.cat, f.gen, WithLogger(zap.New(core)))

	_, err := eng.Analyze("bad.py", []byte("def f(:\n    eval(x)\n"), "python", f.rules(t, "no-eval"))
	require.NoError(t, err)
	entries := logs.FilterMessage("source has syntax errors").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad.py", entries[0].ContextMap()["file"])

	_, err = eng.Analyze("ok.py", []byte("eval(x)\n"), "python", f.rules(t, "no-eval"))
	require.NoError(t, err)
	assert.Len(t, logs.FilterMessage("source has syntax errors").All(), 1)
}
