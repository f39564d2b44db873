package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsResolution(t *testing.T) {
	positives := []string{
		"This is now fixed, thanks",
		"RESOLVED by the road crew yesterday",
		"Work is Done.",
		"completed ahead of schedule",
		"the issue was solved",
		"prefixsolvedsuffix", // substring containment, by contract
	}
	for _, body := range positives {
		assert.True(t, IsResolution(body), "expected resolution: %q", body)
	}

	negatives := []string{
		"",
		"We are still working on it",
		"Thanks for your report",
		"in progress, will update next week",
	}
	for _, body := range negatives {
		assert.False(t, IsResolution(body), "expected non-resolution: %q", body)
	}
}

func TestExtractComplaintID(t *testing.T) {
	id, ok := ExtractComplaintID("Pothole Complaint #aaaaaaaaaaaaaaaaaaaaaaaa")
	assert.True(t, ok)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaa", id)

	// Client-prefixed subjects still match
	id, ok = ExtractComplaintID("Re: Pothole Complaint #0123456789abcdef01234567")
	assert.True(t, ok)
	assert.Equal(t, "0123456789abcdef01234567", id)

	id, ok = ExtractComplaintID("Fwd: Re: Pothole Complaint #ffffffffffffffffffffffff and more")
	assert.True(t, ok)
	assert.Equal(t, "ffffffffffffffffffffffff", id)
}

func TestExtractComplaintIDRejects(t *testing.T) {
	subjects := []string{
		"",
		"Pothole Complaint",
		"Pothole Complaint #",
		"Pothole Complaint #abc",                            // too short
		"Pothole Complaint #AAAAAAAAAAAAAAAAAAAAAAAA",       // uppercase hex
		"Pothole Complaint #gggggggggggggggggggggggg",       // not hex
		"Complaint nr. aaaaaaaaaaaaaaaaaaaaaaaa",            // missing '#'
		"Totally unrelated subject that happens to be long", // no pattern at all
	}
	for _, s := range subjects {
		_, ok := ExtractComplaintID(s)
		assert.False(t, ok, "expected no id in %q", s)
	}
}

func TestExtractComplaintIDTruncatesGreedyHex(t *testing.T) {
	// 25 hex chars: the pattern takes the first 24. The store lookup then
	// decides whether such an id exists.
	id, ok := ExtractComplaintID("Pothole Complaint #aaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.True(t, ok)
	assert.Len(t, id, 24)
}
