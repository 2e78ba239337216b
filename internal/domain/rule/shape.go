package rule

// Placeholder names understood by query templates.
const (
	PlaceholderName     = "name"
	PlaceholderPattern  = "pattern"
	PlaceholderObject   = "object"
	PlaceholderMethod   = "method"
	PlaceholderOperator = "operator"
)

// Bindings are the values a shape contributes to template interpolation.
// Names fans out: the template is instantiated once per entry.
type Bindings struct {
	Names  []string
	Values map[string]string
}

// Shape is the pattern-type specific part of a rule's configuration.
// Each pattern family has exactly one variant.
type Shape interface {
	Bindings() Bindings
	shape()
}

func scalar(pairs ...string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			m[pairs[i]] = pairs[i+1]
		}
	}
	return m
}

// CallShape targets invocations (FUNCTION_CALL).
type CallShape struct {
	FunctionNames []string
	Object        string
	Method        string
}

func (s CallShape) Bindings() Bindings {
	return Bindings{
		Names:  append([]string(nil), s.FunctionNames...),
		Values: scalar(PlaceholderObject, s.Object, PlaceholderMethod, s.Method),
	}
}

// AssignmentShape targets bindings of values to names (ASSIGNMENT, LITERAL).
// VariablePattern wins over ValuePattern for the {{pattern}} slot.
type AssignmentShape struct {
	VariablePattern string
	ValuePattern    string
}

func (s AssignmentShape) Bindings() Bindings {
	p := s.VariablePattern
	if p == "" {
		p = s.ValuePattern
	}
	return Bindings{Values: scalar(PlaceholderPattern, p)}
}

// DeclarationShape targets named declarations (FUNCTION_DECLARATION,
// CLASS_DECLARATION).
type DeclarationShape struct {
	NamePattern string
}

func (s DeclarationShape) Bindings() Bindings {
	return Bindings{Values: scalar(PlaceholderPattern, s.NamePattern)}
}

// HandlerShape targets exception handlers (TRY_CATCH). The template
// carries the structural predicate, e.g. an empty handler body.
type HandlerShape struct{}

func (HandlerShape) Bindings() Bindings { return Bindings{Values: map[string]string{}} }

// ImportShape targets module imports (IMPORT).
type ImportShape struct {
	ModulePattern string
}

func (s ImportShape) Bindings() Bindings {
	return Bindings{Values: scalar(PlaceholderPattern, s.ModulePattern)}
}

// CommentShape targets comment text (COMMENT).
type CommentShape struct {
	TextPattern string
}

func (s CommentShape) Bindings() Bindings {
	return Bindings{Values: scalar(PlaceholderPattern, s.TextPattern)}
}

// BinaryShape targets binary operators (BINARY_EXPRESSION).
type BinaryShape struct {
	Operator string
}

func (s BinaryShape) Bindings() Bindings {
	return Bindings{Values: scalar(PlaceholderOperator, s.Operator)}
}

// MemberShape targets property access and assignment (MEMBER_ACCESS).
type MemberShape struct {
	Object string
	Method string
}

func (s MemberShape) Bindings() Bindings {
	return Bindings{Values: scalar(PlaceholderObject, s.Object, PlaceholderMethod, s.Method)}
}

// StructureShape targets control flow whose template needs no values
// (LOOP, CONDITIONAL).
type StructureShape struct{}

func (StructureShape) Bindings() Bindings { return Bindings{Values: map[string]string{}} }

func (CallShape) shape()        {}
func (AssignmentShape) shape()  {}
func (DeclarationShape) shape() {}
func (HandlerShape) shape()     {}
func (ImportShape) shape()      {}
func (CommentShape) shape()     {}
func (BinaryShape) shape()      {}
func (MemberShape) shape()      {}
func (StructureShape) shape()   {}

// ShapeMatches reports whether a shape variant belongs to the pattern type.
func ShapeMatches(pt PatternType, s Shape) bool {
	switch s.(type) {
	case CallShape:
		return pt == FunctionCall
	case AssignmentShape:
		return pt == Assignment || pt == Literal
	case DeclarationShape:
		return pt == FunctionDeclaration || pt == ClassDeclaration
	case HandlerShape:
		return pt == TryCatch
	case ImportShape:
		return pt == Import
	case CommentShape:
		return pt == Comment
	case BinaryShape:
		return pt == BinaryExpression
	case MemberShape:
		return pt == MemberAccess
	case StructureShape:
		return pt == Loop || pt == Conditional
	default:
		return false
	}
}
