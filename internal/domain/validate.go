package domain

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	// Container naming rules: 3-63 chars, lowercase letters, digits and
	// dashes, starting and ending with a letter or digit.
	containerPattern = regexp.MustCompile(`^[a-z0-9][-a-z0-9]{1,61}[a-z0-9]$`)
)

// ValidEmail reports whether the address is RFC-shaped. Deliberately not an
// exhaustive RFC 5322 check.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidContainerName reports whether the name satisfies bucket naming rules.
func ValidContainerName(name string) bool {
	return containerPattern.MatchString(name)
}

// ValidSampleID reports whether the sample id is usable as a listing prefix.
func ValidSampleID(sampleID string) bool {
	return strings.TrimSpace(sampleID) != ""
}
