package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/codeguard/internal/domain/language"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
)

func callRule(name string, cat rule.Category, sev rule.Severity, names ...string) *rule.Definition {
	return &rule.Definition{
		Name:        name,
		Category:    cat,
		Severity:    sev,
		PatternType: rule.FunctionCall,
		Config:      rule.PatternConfig{Shape: rule.CallShape{FunctionNames: names}},
	}
}

func jsAdapter() *language.Adapter {
	return &language.Adapter{
		Language:   "javascript",
		Extensions: []string{".js", ".mjs"},
		Templates: map[string]string{
			"FUNCTION_CALL_SIMPLE": `(call_expression function: (identifier) @fn (#eq? @fn "{{name}}")) @match`,
		},
	}
}

// =============================================================================
// Catalog: rule/adapter storage, revisions, change notification
// =============================================================================

func TestCatalog_PutRuleBumpsRevision(t *testing.T) {
	c := New()
	d := callRule("no-eval", rule.CategorySecurity, rule.SeverityCritical, "eval")
	require.NoError(t, c.PutRule(d))
	first, ok := c.Rule("no-eval")
	require.True(t, ok)
	assert.Zero(t, d.Revision, "caller's definition is not mutated")

	require.NoError(t, c.PutRule(d))
	second, _ := c.Rule("no-eval")
	assert.Greater(t, second.Revision, first.Revision)
}

func TestCatalog_PutRuleRejectsInvalid(t *testing.T) {
	c := New()
	err := c.PutRule(&rule.Definition{Name: "Bad Name", PatternType: rule.FunctionCall})
	assert.True(t, errors.Is(err, rule.ErrInvalidRule))
	n, _ := c.Counts()
	assert.Zero(t, n)
}

func TestCatalog_RulesFilter(t *testing.T) {
	c := New()
	b := callRule("b-style", rule.CategoryStyle, rule.SeverityWarning, "x")
	b.Tags = []string{"legacy"}
	a := callRule("a-sec", rule.CategorySecurity, rule.SeverityCritical, "eval")
	py := callRule("c-py", rule.CategorySecurity, rule.SeverityWarning, "exec")
	py.Config.Languages = []string{"python"}
	require.NoError(t, c.Load([]*rule.Definition{b, a, py}, nil))

	names := func(ds []*rule.Definition) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.Name)
		}
		return out
	}
	assert.Equal(t, []string{"a-sec", "b-style", "c-py"}, names(c.Rules(Filter{})))
	assert.Equal(t, []string{"a-sec", "c-py"}, names(c.Rules(Filter{Categories: []rule.Category{rule.CategorySecurity}})))
	assert.Equal(t, []string{"a-sec"}, names(c.Rules(Filter{MinSeverity: rule.SeverityCritical})))
	assert.Equal(t, []string{"b-style"}, names(c.Rules(Filter{Tags: []string{"legacy"}})))
	assert.Equal(t, []string{"a-sec", "b-style"}, names(c.Rules(Filter{Language: "javascript"})))
}

func TestCatalog_Load_Duplicates(t *testing.T) {
	c := New()
	err := c.Load([]*rule.Definition{
		callRule("no-eval", rule.CategorySecurity, rule.SeverityCritical, "eval"),
		callRule("no-eval", rule.CategorySecurity, rule.SeverityCritical, "exec"),
	}, nil)
	assert.True(t, errors.Is(err, ErrDuplicateRule))

	err = c.Load(nil, []*language.Adapter{jsAdapter(), jsAdapter()})
	assert.True(t, errors.Is(err, ErrDuplicateAdapter))

	r, a := c.Counts()
	assert.Zero(t, r)
	assert.Zero(t, a)
}

func TestCatalog_AdapterForPath(t *testing.T) {
	c := New()
	require.NoError(t, c.PutAdapter(jsAdapter()))
	require.NoError(t, c.PutAdapter(&language.Adapter{Language: "python", Extensions: []string{".py"}}))

	a, ok := c.AdapterForPath("src/app.MJS")
	require.True(t, ok)
	assert.Equal(t, "javascript", a.Language)

	a, ok = c.AdapterForPath("tool.py")
	require.True(t, ok)
	assert.Equal(t, "python", a.Language)

	_, ok = c.AdapterForPath("README")
	assert.False(t, ok)
	_, ok = c.AdapterForPath("main.rs")
	assert.False(t, ok)

	assert.Len(t, c.Adapters(), 2)
	assert.Error(t, c.PutAdapter(&language.Adapter{}))
}

func TestCatalog_OnChange(t *testing.T) {
	c := New()
	var mu sync.Mutex
	var got []Change
	c.OnChange(func(ch Change) {
		mu.Lock()
		got = append(got, ch)
		mu.Unlock()
	})

	require.NoError(t, c.PutRule(callRule("no-eval", rule.CategorySecurity, rule.SeverityCritical, "eval")))
	require.NoError(t, c.PutAdapter(jsAdapter()))
	require.NoError(t, c.Load(nil, nil))

	assert.Equal(t, []Change{
		{Kind: RuleChanged, Name: "no-eval"},
		{Kind: AdapterChanged, Name: "javascript"},
		{Kind: RuleChanged, Name: "no-eval", Removed: true},
		{Kind: AdapterChanged, Name: "javascript", Removed: true},
	}, got)
}

func TestCatalog_LoadDiffsAgainstLiveEntries(t *testing.T) {
	c := New()
	keep := callRule("keep", rule.CategoryStyle, rule.SeverityWarning, "x")
	edit := callRule("edit", rule.CategoryStyle, rule.SeverityWarning, "y")
	drop := callRule("drop", rule.CategoryStyle, rule.SeverityWarning, "z")
	require.NoError(t, c.Load([]*rule.Definition{keep, edit, drop}, []*language.Adapter{jsAdapter()}))
	keepRev := mustRule(t, c, "keep").Revision
	editRev := mustRule(t, c, "edit").Revision
	jsRev := mustAdapter(t, c, "javascript").Revision

	var got []Change
	c.OnChange(func(ch Change) { got = append(got, ch) })

	edited := callRule("edit", rule.CategoryStyle, rule.SeverityCritical, "y")
	added := callRule("add", rule.CategoryStyle, rule.SeverityWarning, "w")
	require.NoError(t, c.Load([]*rule.Definition{keep, edited, added}, []*language.Adapter{jsAdapter()}))

	assert.Equal(t, []Change{
		{Kind: RuleChanged, Name: "add"},
		{Kind: RuleChanged, Name: "drop", Removed: true},
		{Kind: RuleChanged, Name: "edit"},
	}, got)
	assert.Equal(t, keepRev, mustRule(t, c, "keep").Revision)
	assert.Greater(t, mustRule(t, c, "edit").Revision, editRev)
	assert.Equal(t, jsRev, mustAdapter(t, c, "javascript").Revision)
	_, ok := c.Rule("drop")
	assert.False(t, ok)
}

func mustRule(t *testing.T, c *Catalog, name string) *rule.Definition {
	t.Helper()
	d, ok := c.Rule(name)
	require.True(t, ok, name)
	return d
}

func mustAdapter(t *testing.T, c *Catalog, lang string) *language.Adapter {
	t.Helper()
	a, ok := c.Adapter(lang)
	require.True(t, ok, lang)
	return a
}

func TestCatalog_ReplacedRuleRegeneratesQuery(t *testing.T) {
	c := New()
	g := querygen.NewGenerator()
	require.NoError(t, c.PutAdapter(jsAdapter()))
	require.NoError(t, c.PutRule(callRule("no-eval", rule.CategorySecurity, rule.SeverityCritical, "eval")))

	a, _ := c.Adapter("javascript")
	d, _ := c.Rule("no-eval")
	q1, err := g.Query(d, a)
	require.NoError(t, err)
	assert.Contains(t, q1.Query, `"eval"`)

	require.NoError(t, c.PutRule(callRule("no-eval", rule.CategorySecurity, rule.SeverityCritical, "exec")))
	d, _ = c.Rule("no-eval")
	q2, err := g.Query(d, a)
	require.NoError(t, err)
	assert.Contains(t, q2.Query, `"exec"`)
	assert.NotContains(t, q2.Query, `"eval"`)
}
