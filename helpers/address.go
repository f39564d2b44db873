package helpers

import "strings"

// LocalPart returns the part of an email address before the first '@'.
// Addresses without an '@' are returned unchanged.
func LocalPart(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}
