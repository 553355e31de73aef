package dpattern

// Walk visits d and every DPattern reachable from it (variant children,
// map keys/values, set elements), calling visit on each. It does not
// follow addresses through a store — callers that need store-reachable
// addresses too (internal/store's cardinality invariant check) walk the
// store's partitions separately and call Walk on each stored value.
func Walk(d DPattern, visit func(DPattern)) {
	if d == nil {
		return
	}
	visit(d)
	switch v := d.(type) {
	case *Variant:
		for _, c := range v.Children {
			Walk(c, visit)
		}
	case *Map:
		for _, e := range v.Entries {
			Walk(e.Key, visit)
			Walk(e.Value, visit)
		}
	case *Set:
		for _, e := range v.Elements {
			Walk(e, visit)
		}
	}
}
