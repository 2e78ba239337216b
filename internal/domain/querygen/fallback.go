package querygen

import "github.com/corey/codeguard/internal/domain/rule"

// fallbacks lists the template keys tried, in order, when a rule names no
// template key or names one the adapter lacks.
var fallbacks = map[rule.PatternType][]string{
	rule.FunctionCall:        {"FUNCTION_CALL_SIMPLE", "FUNCTION_CALL_MEMBER"},
	rule.Assignment:          {"ASSIGNMENT_WITH_STRING", "ASSIGNMENT_ANY"},
	rule.FunctionDeclaration: {"FUNCTION_DECLARATION_NAME"},
	rule.ClassDeclaration:    {"CLASS_DECLARATION_NAME"},
	rule.TryCatch:            {"TRY_CATCH_EMPTY"},
	rule.Import:              {"IMPORT_FROM", "IMPORT_MODULE", "IMPORT_FROM_MODULE", "IMPORT_PACKAGE"},
	rule.Comment:             {"COMMENT_PATTERN"},
	rule.BinaryExpression:    {"BINARY_LOOSE_EQUALITY", "BINARY_EXPRESSION_OP"},
	rule.Literal:             {"ASSIGNMENT_WITH_STRING", "LITERAL_MAGIC_NUMBER"},
	rule.MemberAccess:        {"MEMBER_ASSIGNMENT"},
	rule.Loop:                {"AWAIT_IN_LOOP"},
	rule.Conditional:         {"NESTED_TERNARY"},
}

// Fallbacks returns the fallback template keys for a pattern type.
func Fallbacks(pt rule.PatternType) []string {
	return append([]string(nil), fallbacks[pt]...)
}
