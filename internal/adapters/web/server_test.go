//go:build !lean

package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/codeguard/internal/app"
	"github.com/corey/codeguard/internal/config"
	"github.com/corey/codeguard/internal/domain/rule"
)

func setupTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	cfg := app.Config{ProjectRoot: t.TempDir(), Settings: config.Default()}
	if withStore {
		cfg.DBPath = filepath.Join(t.TempDir(), "cg.db")
	}
	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return NewServer(a, nil)
}

func do(t *testing.T, s *Server, method, target, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Handler().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func errorCode(t *testing.T, out map[string]json.RawMessage) string {
	t.Helper()
	var e APIError
	require.NoError(t, json.Unmarshal(out["error"], &e))
	return e.Code
}

// =============================================================================
// Catalog endpoints
// =============================================================================

func TestHealthEndpoint(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, 200, status)

	var h HealthResult
	raw, _ := json.Marshal(out)
	require.NoError(t, json.Unmarshal(raw, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Greater(t, h.Rules, 0)
	assert.Equal(t, 6, h.Adapters)
	assert.Contains(t, h.Grammars, "python")
	assert.Zero(t, h.Cache.Entries)

	status, _ = do(t, s, http.MethodGet, "/api/queries/no-eval/python", "")
	require.Equal(t, 200, status)
	_, out = do(t, s, http.MethodGet, "/api/health", "")
	raw, _ = json.Marshal(out)
	require.NoError(t, json.Unmarshal(raw, &h))
	assert.Equal(t, 1, h.Cache.Entries)
	assert.Equal(t, uint64(1), h.Cache.Misses)
}

func TestLanguagesEndpoint(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodGet, "/api/languages", "")
	assert.Equal(t, 200, status)

	var langs []LanguageInfo
	require.NoError(t, json.Unmarshal(out["data"], &langs))
	require.Len(t, langs, 6)
	for _, l := range langs {
		assert.True(t, l.Available, l.Language)
		assert.NotEmpty(t, l.Templates, l.Language)
	}
}

func TestRulesEndpoint_Filters(t *testing.T) {
	s := setupTestServer(t, false)

	status, out := do(t, s, http.MethodGet, "/api/rules?category=security", "")
	assert.Equal(t, 200, status)
	var infos []rule.Info
	require.NoError(t, json.Unmarshal(out["data"], &infos))
	require.NotEmpty(t, infos)
	for _, in := range infos {
		assert.Equal(t, rule.CategorySecurity, in.Category)
	}

	status, out = do(t, s, http.MethodGet, "/api/rules?language=python&severity=critical", "")
	assert.Equal(t, 200, status)
	infos = nil
	require.NoError(t, json.Unmarshal(out["data"], &infos))
	names := make(map[string]bool)
	for _, in := range infos {
		names[in.Name] = true
		assert.Equal(t, rule.SeverityCritical, in.Severity)
	}
	assert.True(t, names["no-eval"])
	assert.False(t, names["no-var"])

	status, out = do(t, s, http.MethodGet, "/api/rules?category=bogus", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, out))
}

func TestRuleEndpoint(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodGet, "/api/rules/no-eval", "")
	assert.Equal(t, 200, status)
	var in rule.Info
	require.NoError(t, json.Unmarshal(out["data"], &in))
	assert.Equal(t, "no-eval", in.Name)
	assert.Contains(t, in.Names, "eval")

	status, out = do(t, s, http.MethodGet, "/api/rules/nope", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "UNKNOWN_RULE", errorCode(t, out))
}

func TestQueryEndpoint(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodGet, "/api/queries/no-eval/python", "")
	assert.Equal(t, 200, status)
	var q struct {
		Rule  string `json:"rule"`
		Query string `json:"query"`
	}
	require.NoError(t, json.Unmarshal(out["data"], &q))
	assert.Equal(t, "no-eval", q.Rule)
	assert.Contains(t, q.Query, `"eval"`)

	// no-var only targets JavaScript-family languages.
	status, out = do(t, s, http.MethodGet, "/api/queries/no-var/python", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "NO_QUERY", errorCode(t, out))

	status, out = do(t, s, http.MethodGet, "/api/queries/no-eval/cobol", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "UNSUPPORTED_LANGUAGE", errorCode(t, out))
}

// =============================================================================
// Analysis
// =============================================================================

func TestAnalyzeEndpoint(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodPost, "/api/analyze",
		`{"path":"tool.py","source":"def f():\n    eval(code)\n"}`)
	require.Equal(t, 200, status)

	var res rule.FileResult
	require.NoError(t, json.Unmarshal(out["data"], &res))
	assert.Equal(t, "python", res.Language)
	require.NotEmpty(t, res.Violations)
	var hit bool
	for _, v := range res.Violations {
		if v.Rule == "no-eval" {
			hit = true
			assert.Equal(t, 2, v.Line)
			assert.Equal(t, "f", v.Symbol)
		}
	}
	assert.True(t, hit)
}

func TestAnalyzeEndpoint_SelectedRules(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodPost, "/api/analyze",
		`{"language":"javascript","source":"var a = eval(x);\n","rules":["no-var"]}`)
	require.Equal(t, 200, status)

	var res rule.FileResult
	require.NoError(t, json.Unmarshal(out["data"], &res))
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "no-var", res.Violations[0].Rule)
	assert.Equal(t, "<input>", res.Path)
}

func TestAnalyzeEndpoint_Errors(t *testing.T) {
	s := setupTestServer(t, false)
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{"path":`, 400, "BAD_REQUEST"},
		{"no path or language", `{"source":"x"}`, 400, "BAD_REQUEST"},
		{"unknown extension", `{"path":"a.rb","source":"x"}`, 404, "UNSUPPORTED_LANGUAGE"},
		{"unknown language", `{"language":"cobol","source":"x"}`, 404, "UNSUPPORTED_LANGUAGE"},
		{"unknown rule", `{"path":"a.py","source":"x","rules":["nope"]}`, 404, "UNKNOWN_RULE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := do(t, s, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, errorCode(t, out))
		})
	}
}

// =============================================================================
// Run history
// =============================================================================

func TestRunsEndpoints(t *testing.T) {
	s := setupTestServer(t, true)

	status, out := do(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `[]`, string(out["data"]))

	run := &rule.Run{
		ID:         "run-1",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		Files: []rule.FileResult{
			{Path: "src/a.py", Language: "python", Violations: []rule.Violation{{Rule: "no-eval", Severity: rule.SeverityCritical, Line: 1}}},
			{Path: "src/b.py", Language: "python"},
			{Path: "README.md", Skipped: true, Reason: rule.SkipUnsupported},
		},
	}
	require.NoError(t, s.app.SaveRun(run))

	status, out = do(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, 200, status)
	var sums []rule.RunSummary
	require.NoError(t, json.Unmarshal(out["data"], &sums))
	require.Len(t, sums, 1)
	assert.Equal(t, 1, sums[0].Critical)

	status, out = do(t, s, http.MethodGet, "/api/runs/run-1", "")
	assert.Equal(t, 200, status)
	var got rule.Run
	require.NoError(t, json.Unmarshal(out["data"], &got))
	assert.Len(t, got.Files, 3)

	status, out = do(t, s, http.MethodGet, "/api/runs/run-1/tree", "")
	assert.Equal(t, 200, status)
	var tree RunTree
	require.NoError(t, json.Unmarshal(out["data"], &tree))
	assert.Equal(t, 1, tree.CleanFiles)
	assert.Equal(t, 1, tree.RuleCounts["no-eval"])
	assert.Len(t, tree.Tree["src"], 2)
	assert.True(t, tree.Tree["."]["README.md"].Skipped)

	status, out = do(t, s, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "UNKNOWN_RUN", errorCode(t, out))
}

func TestRunsEndpoint_NoStore(t *testing.T) {
	s := setupTestServer(t, false)
	status, out := do(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, 503, status)
	assert.Equal(t, "NO_STORE", errorCode(t, out))
}

func TestDashboardAndStartStop(t *testing.T) {
	s := setupTestServer(t, false)
	require.NoError(t, s.Start("127.0.0.1:0"))
	assert.NotZero(t, s.Port())

	var resp *http.Response
	var err error
	require.Eventually(t, func() bool {
		resp, err = http.Get(s.URL() + "/")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "<title>codeguard</title>")

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "Stop is idempotent")
}
