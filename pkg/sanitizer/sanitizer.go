package sanitizer

import "strings"

// NormalizeEmail trims and lowercases an address. Addresses are compared
// case-insensitively everywhere, so this is the stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims surrounding whitespace. Case is significant.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// MaskEmail keeps the first rune of the local part and the domain:
// "alice@example.com" becomes "a****@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return email
	}
	r := []rune(local)
	return string(r[0]) + strings.Repeat("*", len(r)-1) + "@" + domain
}
