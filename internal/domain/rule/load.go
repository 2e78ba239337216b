package rule

import (
	"errors"
	"fmt"
	"io/fs"
	pathpkg "path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRule wraps every validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// yamlRule is the YAML-serialized form of a Definition.
type yamlRule struct {
	Name          string         `yaml:"name"`
	DisplayName   string         `yaml:"displayName"`
	Description   string         `yaml:"description"`
	Category      string         `yaml:"category"`
	Severity      string         `yaml:"severity"`
	PatternType   string         `yaml:"patternType"`
	Message       string         `yaml:"message,omitempty"`
	Tags          []string       `yaml:"tags,omitempty"`
	PatternConfig yamlPatternCfg `yaml:"patternConfig"`
}

type yamlPatternCfg struct {
	TemplateKey      string              `yaml:"templateKey,omitempty"`
	Languages        []string            `yaml:"languages,omitempty"`
	LanguageSpecific map[string]Override `yaml:"languageSpecific,omitempty"`
	Query            string              `yaml:"query,omitempty"`
	Filter           string              `yaml:"filter,omitempty"`

	FunctionNames   []string `yaml:"functionNames,omitempty"`
	Object          string   `yaml:"object,omitempty"`
	Method          string   `yaml:"method,omitempty"`
	Pattern         string   `yaml:"pattern,omitempty"`
	VariablePattern string   `yaml:"variablePattern,omitempty"`
	ValuePattern    string   `yaml:"valuePattern,omitempty"`
	NamePattern     string   `yaml:"namePattern,omitempty"`
	ModulePattern   string   `yaml:"modulePattern,omitempty"`
	Operator        string   `yaml:"operator,omitempty"`
}

// LoadRulesFromFS loads every *.yaml file in dir. Files are read in sorted
// order and rule names must be unique across all of them.
func LoadRulesFromFS(fsys fs.FS, dir string) ([]*Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var all []*Definition
	seen := make(map[string]string) // name -> source file

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := pathpkg.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		defs, err := ParseRules(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		for _, d := range defs {
			if prev, ok := seen[d.Name]; ok {
				return nil, fmt.Errorf("%w: duplicate rule name %q (first in %s, again in %s)",
					ErrInvalidRule, d.Name, prev, entry.Name())
			}
			seen[d.Name] = entry.Name()
			all = append(all, d)
		}
	}
	return all, nil
}

// ParseRules decodes a YAML list of rules and validates each one.
func ParseRules(data []byte) ([]*Definition, error) {
	var yrs []yamlRule
	if err := yaml.Unmarshal(data, &yrs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	defs := make([]*Definition, 0, len(yrs))
	for _, yr := range yrs {
		d, err := convertRule(yr)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", yr.Name, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func patternTypeList() string {
	names := make([]string, 0, len(patternTypeNames))
	for _, pt := range PatternTypes() {
		names = append(names, pt.String())
	}
	return strings.Join(names, ", ")
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func convertRule(yr yamlRule) (*Definition, error) {
	cat := CategoryFromName(yr.Category)
	if cat < 0 {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidRule, yr.Category)
	}
	sev := SeverityFromName(yr.Severity)
	if sev < 0 {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, yr.Severity)
	}
	pt := PatternTypeFromName(yr.PatternType)
	if pt < 0 {
		return nil, fmt.Errorf("%w: unknown patternType %q (want one of %s)", ErrInvalidRule, yr.PatternType, patternTypeList())
	}

	pc := yr.PatternConfig
	msg := yr.Message
	if msg == "" {
		msg = yr.Description
	}
	d := &Definition{
		Name:        yr.Name,
		DisplayName: yr.DisplayName,
		Description: yr.Description,
		Category:    cat,
		Severity:    sev,
		PatternType: pt,
		Message:     msg,
		Tags:        yr.Tags,
		Config: PatternConfig{
			TemplateKey:      pc.TemplateKey,
			Languages:        pc.Languages,
			LanguageSpecific: pc.LanguageSpecific,
			Query:            pc.Query,
			Filter:           pc.Filter,
			Shape:            shapeFor(pt, pc),
		},
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// shapeFor builds the shape variant for a pattern type. The generic
// "pattern" key fills whichever pattern slot the variant has.
func shapeFor(pt PatternType, pc yamlPatternCfg) Shape {
	or := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	switch pt {
	case FunctionCall:
		return CallShape{FunctionNames: pc.FunctionNames, Object: pc.Object, Method: pc.Method}
	case Assignment, Literal:
		return AssignmentShape{
			VariablePattern: or(pc.VariablePattern, pc.Pattern),
			ValuePattern:    pc.ValuePattern,
		}
	case FunctionDeclaration, ClassDeclaration:
		return DeclarationShape{NamePattern: or(pc.NamePattern, pc.Pattern)}
	case TryCatch:
		return HandlerShape{}
	case Import:
		return ImportShape{ModulePattern: or(pc.ModulePattern, pc.Pattern)}
	case Comment:
		return CommentShape{TextPattern: pc.Pattern}
	case BinaryExpression:
		return BinaryShape{Operator: pc.Operator}
	case MemberAccess:
		return MemberShape{Object: pc.Object, Method: pc.Method}
	default:
		return StructureShape{}
	}
}

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks a definition's invariants.
func Validate(d *Definition) error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidRule)
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("%w: name %q must be lowercase kebab-case", ErrInvalidRule, d.Name)
	}
	if d.Category.String() == "UNKNOWN" {
		return fmt.Errorf("%w: unknown category", ErrInvalidRule)
	}
	if d.Severity.String() == "UNKNOWN" {
		return fmt.Errorf("%w: unknown severity", ErrInvalidRule)
	}
	if d.PatternType.String() == "UNKNOWN" {
		return fmt.Errorf("%w: unknown pattern type", ErrInvalidRule)
	}
	if d.Config.Shape == nil {
		return fmt.Errorf("%w: missing pattern shape", ErrInvalidRule)
	}
	if !ShapeMatches(d.PatternType, d.Config.Shape) {
		return fmt.Errorf("%w: shape %T does not fit pattern type %s",
			ErrInvalidRule, d.Config.Shape, d.PatternType)
	}

	b := d.Config.Shape.Bindings()
	if p, ok := b.Values[PlaceholderPattern]; ok {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: pattern %q: %v", ErrInvalidRule, p, err)
		}
	}
	for _, n := range b.Names {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: empty function name", ErrInvalidRule)
		}
	}
	for lang, o := range d.Config.LanguageSpecific {
		if o.Pattern == "" {
			continue
		}
		if _, err := regexp.Compile(o.Pattern); err != nil {
			return fmt.Errorf("%w: %s override pattern %q: %v", ErrInvalidRule, lang, o.Pattern, err)
		}
	}
	if d.Config.Filter != "" {
		if _, err := CompileFilter(d.Config.Filter); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	return nil
}
