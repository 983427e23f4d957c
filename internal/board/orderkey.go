package board

import "strings"

// orderDigits is the alphabet for fractional order keys, in byte order.
const orderDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// OrderKeyBetween returns an order key strictly between a and b in byte
// order. An empty a means the lowest bound, an empty b the highest.
// Generated keys never end with the minimum digit, so a predecessor can
// always be produced later. Passing a >= b is caller misuse; a is
// returned unchanged to keep the ordering total.
func OrderKeyBetween(a, b string) string {
	if b != "" && a >= b {
		return a
	}

	// strip common prefix
	p := 0
	for p < len(a) && p < len(b) && a[p] == b[p] {
		p++
	}
	prefix := a[:p]
	ra, rb := a[p:], b[p:]

	da := -1
	if ra != "" {
		da = strings.IndexByte(orderDigits, ra[0])
	}
	db := len(orderDigits)
	if rb != "" {
		db = strings.IndexByte(orderDigits, rb[0])
	}

	if db-da > 1 {
		mid := (da + db + 1) / 2
		if mid > 0 {
			return prefix + string(orderDigits[mid])
		}
		// only the minimum digit fits here; extend below rb instead
		return prefix + string(orderDigits[0]) + OrderKeyBetween("", "")
	}

	// adjacent digits, no room at this position
	if ra != "" {
		return prefix + string(ra[0]) + OrderKeyBetween(ra[1:], "")
	}
	// ra empty and rb starts with the minimum digit: descend into rb
	return prefix + string(rb[0]) + OrderKeyBetween("", rb[1:])
}

// OrderKeyAfter returns a key above every existing key ending at last.
func OrderKeyAfter(last string) string {
	return OrderKeyBetween(last, "")
}
