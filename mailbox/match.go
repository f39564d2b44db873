package mailbox

import (
	"regexp"
	"strings"
)

// resolutionKeywords mark a reply as reporting a fixed pothole. Matching is
// case-insensitive substring containment, nothing smarter.
var resolutionKeywords = []string{"resolved", "done", "fixed", "completed", "solved"}

// complaintIDPattern matches the identifier embedded in dispatched subject
// lines. The search is unanchored so client-added prefixes like "Re:" and
// "Fwd:" are tolerated.
var complaintIDPattern = regexp.MustCompile(`Complaint\s+#([a-f0-9]{24})`)

// IsResolution reports whether the body contains any resolution keyword.
func IsResolution(body string) bool {
	lower := strings.ToLower(body)
	for _, keyword := range resolutionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ExtractComplaintID finds the 24-character hexadecimal complaint
// identifier in a reply subject. Returns false when the subject does not
// carry one.
func ExtractComplaintID(subject string) (string, bool) {
	m := complaintIDPattern.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}
	return m[1], true
}
