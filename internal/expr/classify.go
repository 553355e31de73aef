package expr

// Classifier is an expression's store-interaction bitset: an optimization
// hint only — it never affects observable behavior. Pure expressions
// (neither write nor alloc) are safe to memoize; write-only expressions
// can be represented as deltas.
type Classifier uint8

const (
	ClassRead Classifier = 1 << iota
	ClassWrite
	ClassCardinality
	ClassAlloc
	ClassMany
)

// Pure reports whether the expression can neither write the store nor
// allocate.
func (c Classifier) Pure() bool { return c&(ClassWrite|ClassAlloc) == 0 }

func (c Classifier) String() string {
	if c == 0 {
		return "pure"
	}
	out := ""
	add := func(bit Classifier, name string) {
		if c&bit != 0 {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	add(ClassRead, "read")
	add(ClassWrite, "write")
	add(ClassCardinality, "cardinality")
	add(ClassAlloc, "alloc")
	add(ClassMany, "many")
	return out
}

// Classify computes an expression's store-interaction classifier by
// folding its sub-expressions. Meta-function calls classify conservatively
// as everything, since the callee's rules are not visible here.
func Classify(e *Expr) Classifier {
	if e == nil {
		return 0
	}
	switch e.Kind {
	case KindTerm, KindLitBool, KindEmptySet:
		return 0
	case KindMapLookup:
		return Classify(e.Key) | Classify(e.Default)
	case KindMapExtend:
		// Reads the cardinality map to decide strong vs weak.
		return ClassCardinality | Classify(e.Key) | Classify(e.Val)
	case KindStoreLookup:
		return ClassRead | ClassCardinality | Classify(e.Key)
	case KindIf:
		return Classify(e.Guard) | Classify(e.Then) | Classify(e.Else)
	case KindLet:
		c := Classify(e.Body)
		for _, b := range e.Bindings {
			c |= classifyBinding(b)
		}
		return c
	case KindEqual:
		return ClassCardinality | Classify(e.L) | Classify(e.R)
	case KindInDom:
		return Classify(e.Key)
	case KindInSet:
		return Classify(e.SetE) | Classify(e.Elem)
	case KindSetUnion:
		var c Classifier
		for _, s := range e.Exprs {
			c |= Classify(s)
		}
		return c
	case KindSetAdd:
		c := Classify(e.SetE)
		for _, s := range e.Exprs {
			c |= Classify(s)
		}
		return c
	case KindMetaCall:
		return ClassRead | ClassWrite | ClassCardinality | ClassAlloc | ClassMany
	case KindChoose:
		return ClassMany | Classify(e.SetE)
	case KindAlloc:
		return ClassAlloc | ClassCardinality | Classify(e.AllocHint)
	case KindUnsafeStoreSpaceRef, KindUnsafeStoreRef:
		return ClassRead
	default:
		return 0
	}
}

func classifyBinding(b BindingForm) Classifier {
	switch b.Kind {
	case BindPat, BindWhen:
		return Classify(b.Expr)
	case BindStoreExtend:
		return ClassWrite | ClassCardinality | Classify(b.KeyE) | Classify(b.ValE)
	default:
		return 0
	}
}
