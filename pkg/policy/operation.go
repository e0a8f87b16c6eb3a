package policy

import "strings"

// OperationKind is one of the tracked operations subject to fault injection.
type OperationKind string

// Tracked operations.
const (
	OpGet    OperationKind = "GET"
	OpPut    OperationKind = "PUT"
	OpDelete OperationKind = "DELETE"
)

var operations = []OperationKind{OpGet, OpPut, OpDelete}

// operationAliases maps accepted spellings (upper-cased) to their kind.
var operationAliases = map[string]OperationKind{
	"GET":    OpGet,
	"READ":   OpGet,
	"PUT":    OpPut,
	"WRITE":  OpPut,
	"DELETE": OpDelete,
}

// Operations returns every tracked operation in a fixed order.
func Operations() []OperationKind {
	return append([]OperationKind(nil), operations...)
}

// ParseOperation normalizes an operation name. It is case-insensitive and
// accepts READ and WRITE as aliases of GET and PUT. ok is false for anything
// that is not tracked.
func ParseOperation(name string) (op OperationKind, ok bool) {
	op, ok = operationAliases[strings.ToUpper(strings.TrimSpace(name))]
	return op, ok
}

// String returns the canonical name.
func (o OperationKind) String() string {
	return string(o)
}

// EffectCategory is a family of effects with its own PolicyGroup.
type EffectCategory string

// Effect categories, in dispatch order.
const (
	CategoryErrors    EffectCategory = "errors"
	CategoryLatencies EffectCategory = "latencies"
)

var categories = []EffectCategory{CategoryErrors, CategoryLatencies}

// Categories returns every effect category in dispatch order. Errors come
// first, so a failed operation is never also delayed.
func Categories() []EffectCategory {
	return append([]EffectCategory(nil), categories...)
}
