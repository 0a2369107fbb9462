package dump

import (
	apperrors "github.com/oatdump/pkg/errors"
)

// Category is the top-level kind of a heap object.
type Category int

const (
	CategoryObject Category = iota
	CategoryClass
	CategoryMethod
	CategoryField
	CategoryArray
	CategoryString
)

var categoryNames = map[Category]string{
	CategoryObject: "OBJECT",
	CategoryClass:  "CLASS",
	CategoryMethod: "METHOD",
	CategoryField:  "FIELD",
	CategoryArray:  "ARRAY",
	CategoryString: "STRING",
}

func (c Category) String() string { return categoryNames[c] }

// Capabilities are the independent checks the object model answers. More
// than one may hold for the same object.
type Capabilities struct {
	Class  bool
	Method bool
	Field  bool
	Array  bool
	String bool // the object's class is the runtime string class
}

// categoryRules is evaluated top to bottom; the first match wins.
var categoryRules = []struct {
	match    func(Capabilities) bool
	category Category
}{
	{func(c Capabilities) bool { return c.Class }, CategoryClass},
	{func(c Capabilities) bool { return c.Method }, CategoryMethod},
	{func(c Capabilities) bool { return c.Field }, CategoryField},
	{func(c Capabilities) bool { return c.Array }, CategoryArray},
	{func(c Capabilities) bool { return c.String }, CategoryString},
}

// Classify returns exactly one category for c.
func Classify(c Capabilities) Category {
	for _, r := range categoryRules {
		if r.match(c) {
			return r.category
		}
	}
	return CategoryObject
}

// MethodKind is the execution kind of a method.
type MethodKind int

const (
	MethodManaged MethodKind = iota
	MethodNative
	MethodAbstract
	MethodCalleeSave
)

var methodKindNames = map[MethodKind]string{
	MethodManaged:    "managed",
	MethodNative:     "native",
	MethodAbstract:   "abstract",
	MethodCalleeSave: "callee-save",
}

func (k MethodKind) String() string { return methodKindNames[k] }

// MethodTraits are the method properties the kind is decided from.
type MethodTraits struct {
	Native     bool
	Abstract   bool
	CalleeSave bool
}

var methodKindRules = []struct {
	match func(MethodTraits) bool
	kind  MethodKind
}{
	{func(t MethodTraits) bool { return t.Native }, MethodNative},
	{func(t MethodTraits) bool { return t.Abstract }, MethodAbstract},
	{func(t MethodTraits) bool { return t.CalleeSave }, MethodCalleeSave},
}

// ClassifyMethod returns exactly one kind for t, managed when nothing else applies.
func ClassifyMethod(t MethodTraits) MethodKind {
	for _, r := range methodKindRules {
		if r.match(t) {
			return r.kind
		}
	}
	return MethodManaged
}

// SideTables are the GC map and mapping table of a method. A zero address
// means the table is absent.
type SideTables struct {
	GcMap           uint32
	GcMapLen        uint32
	MappingTable    uint32
	MappingTableLen uint32
}

// CheckSideTables enforces the presence contract of kind: only managed
// methods carry a GC map and a mapping table, and a managed method's GC map
// is never empty.
func CheckSideTables(name string, kind MethodKind, t SideTables) error {
	if kind != MethodManaged {
		switch {
		case t.GcMap != 0:
			return apperrors.ConsistencyFault("%s method %s has a gc map at %#x", kind, name, t.GcMap)
		case t.GcMapLen != 0:
			return apperrors.ConsistencyFault("%s method %s has a gc map length of %d", kind, name, t.GcMapLen)
		case t.MappingTable != 0:
			return apperrors.ConsistencyFault("%s method %s has a mapping table at %#x", kind, name, t.MappingTable)
		}
		return nil
	}
	switch {
	case t.GcMap == 0:
		return apperrors.ConsistencyFault("managed method %s has no gc map", name)
	case t.GcMapLen == 0:
		return apperrors.ConsistencyFault("managed method %s has an empty gc map", name)
	case t.MappingTable == 0:
		return apperrors.ConsistencyFault("managed method %s has no mapping table", name)
	}
	return nil
}
