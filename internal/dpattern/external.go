package dpattern

import "fmt"

// External wraps a value belonging to an external space: its membership,
// cardinality, and special-equality oracle are defined by the space
// itself (internal/space), not by this package. External only carries
// enough to dispatch back to that space: the space name and an opaque
// payload.
//
// External values render their payload verbatim; Payload is
// therefore required to implement fmt.Stringer so internal/sexp has
// something to print without reaching into space-specific internals.
type External struct {
	SpaceName string
	Payload   fmt.Stringer
}

func NewExternal(spaceName string, payload fmt.Stringer) *External {
	return &External{SpaceName: spaceName, Payload: payload}
}

func (*External) Kind() Kind { return KindExternal }

func (e *External) Hash() uint64 {
	return HashWithTag(tagExternal, []byte(e.SpaceName+":"+e.Payload.String()))
}
