package web

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/corey/codeguard/internal/adapters/walker"
	"github.com/corey/codeguard/internal/domain/catalog"
	"github.com/corey/codeguard/internal/domain/querygen"
	"github.com/corey/codeguard/internal/domain/rule"
)

// HealthResult is the response for GET /api/health.
type HealthResult struct {
	Status   string              `json:"status"`
	Rules    int                 `json:"rules"`
	Adapters int                 `json:"adapters"`
	Grammars []string            `json:"grammars"`
	Cache    querygen.CacheStats `json:"cache"`
	Uptime   string              `json:"uptime"`
}

// LanguageInfo describes one loaded adapter.
type LanguageInfo struct {
	Language    string   `json:"language"`
	DisplayName string   `json:"displayName"`
	Extensions  []string `json:"extensions"`
	Grammar     string   `json:"grammar"`
	Available   bool     `json:"available"`
	Templates   []string `json:"templates"`
}

// AnalyzeRequest is the body of POST /api/analyze. Language may be left
// empty when Path carries a known extension; Rules empty means every
// configured rule.
type AnalyzeRequest struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Source   string   `json:"source"`
	Rules    []string `json:"rules"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	rules, adapters := s.app.Catalog.Counts()
	return c.JSON(HealthResult{
		Status:   "ok",
		Rules:    rules,
		Adapters: adapters,
		Grammars: s.app.Grammars.Languages(),
		Cache:    s.app.Generator.Stats(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleLanguages(c *fiber.Ctx) error {
	adapters := s.app.Catalog.Adapters()
	out := make([]LanguageInfo, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, LanguageInfo{
			Language:    a.Language,
			DisplayName: a.DisplayName,
			Extensions:  a.Extensions,
			Grammar:     a.GrammarName(),
			Available:   s.app.Grammars.HasLanguage(a.GrammarName()),
			Templates:   a.TemplateKeys(),
		})
	}
	return c.JSON(fiber.Map{"data": out, "count": len(out)})
}

// handleRules lists rules, optionally narrowed by ?category=, ?severity=,
// ?tag= (repeatable or comma separated) and ?language=.
func (s *Server) handleRules(c *fiber.Ctx) error {
	f := catalog.Filter{Language: strings.ToLower(c.Query("language"))}
	if name := c.Query("category"); name != "" {
		cat := rule.CategoryFromName(name)
		if cat < 0 {
			return badRequest("unknown category %q", name)
		}
		f.Categories = []rule.Category{cat}
	}
	if name := c.Query("severity"); name != "" {
		sev := rule.SeverityFromName(name)
		if sev < 0 {
			return badRequest("unknown severity %q", name)
		}
		f.MinSeverity = sev
	}
	if tags := c.Query("tag"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}
	infos := rule.Infos(s.app.Catalog.Rules(f))
	return c.JSON(fiber.Map{"data": infos, "count": len(infos)})
}

func (s *Server) handleRule(c *fiber.Ctx) error {
	name := c.Params("name")
	d, ok := s.app.Catalog.Rule(name)
	if !ok {
		return notFound("UNKNOWN_RULE", "unknown rule: %s", name)
	}
	return c.JSON(fiber.Map{"data": d.Info()})
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	q, err := s.app.Query(c.Params("rule"), c.Params("language"))
	if err != nil {
		if querygen.Skippable(err) {
			return notFound("NO_QUERY", "%v", err)
		}
		if e := classify(err); e != err {
			return e
		}
		// Generation failures are rule bugs, reported to the caller.
		return &APIError{Code: "GENERATION_FAILED", Status: fiber.StatusUnprocessableEntity, Message: err.Error()}
	}
	return c.JSON(fiber.Map{"data": q})
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}

	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		if req.Path == "" {
			return badRequest("path or language required")
		}
		detected, ok := s.app.DetectLanguage(req.Path)
		if !ok {
			return notFound("UNSUPPORTED_LANGUAGE", "no adapter handles %s", req.Path)
		}
		lang = detected
	} else if _, ok := s.app.Catalog.Adapter(lang); !ok {
		return notFound("UNSUPPORTED_LANGUAGE", "no adapter for %q", lang)
	}

	if limit := s.app.Settings.MaxFileSize; limit > 0 && int64(len(req.Source)) > limit {
		return &APIError{Code: "TOO_LARGE", Status: fiber.StatusRequestEntityTooLarge, Message: "source exceeds max_file_size"}
	}

	rules, err := s.app.RulesByName(req.Rules)
	if err != nil {
		return classify(err)
	}

	path := req.Path
	if path == "" {
		path = "<input>"
	}
	res := s.app.AnalyzeSource(c.UserContext(), walker.File{Path: path, Rel: path, Language: lang}, []byte(req.Source), rules)
	return c.JSON(fiber.Map{"data": res})
}

func (s *Server) storeRequired() error {
	if s.app.Store == nil {
		return &APIError{Code: "NO_STORE", Status: fiber.StatusServiceUnavailable, Message: "run history is disabled"}
	}
	return nil
}

func (s *Server) handleRuns(c *fiber.Ctx) error {
	if err := s.storeRequired(); err != nil {
		return err
	}
	runs, err := s.app.Store.ListRuns()
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []rule.RunSummary{}
	}
	return c.JSON(fiber.Map{"data": runs, "count": len(runs)})
}

func (s *Server) loadRun(c *fiber.Ctx) (*rule.Run, error) {
	if err := s.storeRequired(); err != nil {
		return nil, err
	}
	id := c.Params("id")
	run, err := s.app.Store.LoadRun(id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, notFound("UNKNOWN_RUN", "unknown run: %s", id)
	}
	return run, nil
}

func (s *Server) handleRun(c *fiber.Ctx) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": run, "summary": run.Summary()})
}

func (s *Server) handleRunTree(c *fiber.Ctx) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": BuildTree(run)})
}
