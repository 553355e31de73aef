package dpattern

// FNV-1a hashing, used by the matcher's map fast path and the memoized
// reduction relation's visited-set key.

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// Tag discriminators, one per DPattern kind, so that e.g. the integer 1
// and the single-character string "1" never collide.
const (
	tagNumberInt byte = iota
	tagNumberFloat
	tagBool
	tagSymbol
	tagChar
	tagString
	tagVariant
	tagAddress
	tagMap
	tagSet
	tagExternal
)

// HashWithTag seeds a new FNV-1a stream tagged with the provided
// discriminator, then folds in data.
func HashWithTag(tag byte, data []byte) uint64 {
	hash := fnvOffset64
	hash = HashBytes(hash, []byte{tag})
	if len(data) > 0 {
		hash = HashBytes(hash, data)
	}
	return hash
}

// HashBytes feeds the FNV-1a state with additional data.
func HashBytes(hash uint64, data []byte) uint64 {
	for _, b := range data {
		hash ^= uint64(b)
		hash *= fnvPrime64
	}
	return hash
}

// combine folds a child hash into a running parent hash (order-sensitive;
// used for variants and addresses where component order matters).
func combine(hash uint64, child uint64) uint64 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(child >> (8 * i))
	}
	return HashBytes(hash, buf[:])
}

// combineUnordered folds a child hash into a running parent hash without
// regard to order (used for sets and maps, whose elements/entries are
// unordered).
func combineUnordered(hash uint64, child uint64) uint64 {
	return hash ^ (child*fnvPrime64 + fnvOffset64)
}
