package utils

import (
	"regexp"
	"strings"
)

const (
	// DefaultPageSize is used when a listing does not ask for a limit.
	DefaultPageSize = 10
	// MaxPageSize caps every listing.
	MaxPageSize = 100
)

// NormalizePage clamps page and limit to their allowed ranges.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// TotalPages returns how many pages of size limit hold total items.
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

// MaskEmail keeps the first three characters of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return MaskTail(email, 3)
	}
	local, domain := []rune(email[:at]), email[at+1:]
	keep := 3
	if len(local) < keep {
		keep = len(local)
	}
	return string(local[:keep]) + "***@" + domain
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// MaskTail keeps the first n runes of s and stars the rest.
func MaskTail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + strings.Repeat("*", len(r)-n)
}

// ContainsPattern builds a case-insensitive literal match for name searches.
func ContainsPattern(search string) string {
	return regexp.QuoteMeta(strings.TrimSpace(search))
}
