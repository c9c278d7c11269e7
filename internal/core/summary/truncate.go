package summary

// MaxFieldLength is the store's per-field size ceiling. Every string
// written back is truncated to this length before submission.
const MaxFieldLength = 131072

// Truncate caps s at MaxFieldLength characters. The store counts
// field size in characters, not bytes, so truncation walks runes and
// never splits a multi-byte sequence.
func Truncate(s string) string {
	if len(s) <= MaxFieldLength {
		return s
	}
	count := 0
	for i := range s {
		if count == MaxFieldLength {
			return s[:i]
		}
		count++
	}
	return s
}
