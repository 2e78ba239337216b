package rule

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Rule loading: YAML decode, shape selection, validation
// Expectation: every rule file decodes into typed definitions; bad enums,
// bad regexes and duplicate names are rejected with ErrInvalidRule.
// =============================================================================

const evalYAML = `
- name: no-eval
  displayName: No eval()
  description: Dynamic code execution
  category: SECURITY
  severity: CRITICAL
  patternType: FUNCTION_CALL
  tags: [security, injection]
  patternConfig:
    functionNames: [eval, exec]
- name: no-console-log
  description: Console output left in code
  category: BEST_PRACTICE
  severity: WARNING
  patternType: FUNCTION_CALL
  patternConfig:
    templateKey: CONSOLE_ANY
    languageSpecific:
      javascript: {object: console}
      python: {function: print}
`

func TestParseRules_Shapes(t *testing.T) {
	defs, err := ParseRules([]byte(evalYAML))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	eval := defs[0]
	assert.Equal(t, "no-eval", eval.Name)
	assert.Equal(t, CategorySecurity, eval.Category)
	assert.Equal(t, SeverityCritical, eval.Severity)
	assert.Equal(t, FunctionCall, eval.PatternType)
	assert.Equal(t, "Dynamic code execution", eval.Message, "message defaults to description")
	call, ok := eval.Config.Shape.(CallShape)
	require.True(t, ok)
	assert.Equal(t, []string{"eval", "exec"}, call.FunctionNames)
	assert.True(t, eval.HasTag("injection"))

	console := defs[1]
	assert.Equal(t, "CONSOLE_ANY", console.Config.TemplateKey)
	o, ok := console.OverrideFor("python")
	require.True(t, ok)
	assert.Equal(t, "print", o.Function)
	_, ok = console.OverrideFor("java")
	assert.False(t, ok)
}

func TestParseRules_GenericPatternFillsShape(t *testing.T) {
	data := `
- name: class-pascal-case
  description: Classes should be PascalCase
  category: NAMING
  severity: WARNING
  patternType: CLASS_DECLARATION
  patternConfig:
    pattern: "^[a-z]"
- name: no-lodash-import
  description: lodash import
  category: PERFORMANCE
  severity: WARNING
  patternType: IMPORT
  patternConfig:
    pattern: "lodash"
- name: hardcoded-secret
  description: secret
  category: SECURITY
  severity: CRITICAL
  patternType: ASSIGNMENT
  patternConfig:
    variablePattern: "(?i)password"
`
	defs, err := ParseRules([]byte(data))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, DeclarationShape{NamePattern: "^[a-z]"}, defs[0].Config.Shape)
	assert.Equal(t, ImportShape{ModulePattern: "lodash"}, defs[1].Config.Shape)
	assert.Equal(t, AssignmentShape{VariablePattern: "(?i)password"}, defs[2].Config.Shape)
	assert.Equal(t, "(?i)password", defs[2].Config.Shape.Bindings().Values[PlaceholderPattern])
}

func TestParseRules_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad category", `[{name: a, category: FUN, severity: WARNING, patternType: LOOP}]`},
		{"bad severity", `[{name: a, category: STYLE, severity: INFO, patternType: LOOP}]`},
		{"bad pattern type", `[{name: a, category: STYLE, severity: WARNING, patternType: GOTO}]`},
		{"bad name", `[{name: "No Spaces", category: STYLE, severity: WARNING, patternType: LOOP}]`},
		{"bad regex", `[{name: a, category: STYLE, severity: WARNING, patternType: COMMENT, patternConfig: {pattern: "("}}]`},
		{"bad filter", `[{name: a, category: STYLE, severity: WARNING, patternType: LOOP, patternConfig: {filter: "lines >"}}]`},
		{"empty function name", `[{name: a, category: STYLE, severity: WARNING, patternType: FUNCTION_CALL, patternConfig: {functionNames: [""]}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRule), "got %v", err)
		})
	}
}

func TestParseRules_UnknownPatternTypeListsChoices(t *testing.T) {
	_, err := ParseRules([]byte(`[{name: a, category: STYLE, severity: WARNING, patternType: GOTO}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FUNCTION_CALL, ASSIGNMENT")
	assert.Contains(t, err.Error(), "CONDITIONAL")
}

func TestLoadRulesFromFS_SortedAndUnique(t *testing.T) {
	fsys := fstest.MapFS{
		"rules/b.yaml":    {Data: []byte(`[{name: second, description: b, category: STYLE, severity: WARNING, patternType: LOOP}]`)},
		"rules/a.yaml":    {Data: []byte(`[{name: first, description: a, category: STYLE, severity: WARNING, patternType: LOOP}]`)},
		"rules/README.md": {Data: []byte("ignored")},
	}
	defs, err := LoadRulesFromFS(fsys, "rules")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "first", defs[0].Name)
	assert.Equal(t, "second", defs[1].Name)

	fsys["rules/c.yaml"] = &fstest.MapFile{Data: []byte(`[{name: first, description: dup, category: STYLE, severity: WARNING, patternType: LOOP}]`)}
	_, err = LoadRulesFromFS(fsys, "rules")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "duplicate rule name")
}

func TestAppliesTo(t *testing.T) {
	d := &Definition{Config: PatternConfig{Languages: []string{"javascript", "typescript"}}}
	assert.True(t, d.AppliesTo("javascript"))
	assert.False(t, d.AppliesTo("python"))

	open := &Definition{}
	assert.True(t, open.AppliesTo("python"), "no restriction means every language")
}

func TestEnumNames(t *testing.T) {
	for _, pt := range PatternTypes() {
		assert.Equal(t, pt, PatternTypeFromName(pt.String()))
	}
	assert.Equal(t, CategoryBestPractice, CategoryFromName("best_practice"))
	assert.Equal(t, Category(-1), CategoryFromName("nope"))
	assert.Equal(t, Severity(-1), SeverityFromName("info"))

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("critical")))
	assert.Equal(t, SeverityCritical, s)
}

func TestShapeMatches(t *testing.T) {
	assert.True(t, ShapeMatches(FunctionCall, CallShape{}))
	assert.True(t, ShapeMatches(Literal, AssignmentShape{}))
	assert.True(t, ShapeMatches(Conditional, StructureShape{}))
	assert.False(t, ShapeMatches(TryCatch, CallShape{}))

	d := &Definition{Name: "x", PatternType: TryCatch, Config: PatternConfig{Shape: CallShape{}}}
	assert.ErrorIs(t, Validate(d), ErrInvalidRule)
}
