package normalize

import (
	"strconv"
	"strings"
)

// FormatIndian groups digits the Indian way: 12345678 is "1,23,45,678".
func FormatIndian(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		digits = strings.Join(append(groups, tail), ",")
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// FormatRupees renders an amount with the rupee sign, or "-" when unknown.
func FormatRupees(n *int64) string {
	if n == nil {
		return "-"
	}
	return "₹" + FormatIndian(*n)
}
