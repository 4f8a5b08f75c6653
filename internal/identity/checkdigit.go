package identity

import "strings"

// ValidCheckDigit verifies the modulo-11 verifier of a dotted national ID.
func ValidCheckDigit(id string) bool {
	body, dv, ok := strings.Cut(strings.ReplaceAll(id, ".", ""), "-")
	if !ok || body == "" || len(dv) != 1 {
		return false
	}
	want, ok := CheckDigit(body)
	if !ok {
		return false
	}
	return strings.EqualFold(dv, want)
}

// CheckDigit computes the verifier for the numeric body: "0"-"9" or "K".
func CheckDigit(body string) (string, bool) {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return "", false
		}
		sum += int(c-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return "0", true
	case 10:
		return "K", true
	default:
		return string(rune('0' + r)), true
	}
}
