package token

import "strings"

// categoryRoots is the closed set of first-segment categories a capability
// string may belong to, plus the root wildcard "*".
var categoryRoots = map[string]bool{
	"cmd":   true,
	"relay": true,
	"data":  true,
	"query": true,
	"admin": true,
	"*":     true,
}

// ValidCapability reports whether cap is well-formed: colon-separated
// segments, no empty segment, and a first segment drawn from the closed
// category set.
func ValidCapability(cap string) bool {
	if cap == "" {
		return false
	}
	segments := strings.Split(cap, ":")
	for i, s := range segments {
		if s == "" {
			return false
		}
		if s == "*" && i != 0 && i != len(segments)-1 {
			return false
		}
	}
	return categoryRoots[segments[0]]
}

// Matches reports whether granted authorizes requested: each segment of
// granted is either "*" (consuming the remainder) or equal to the
// corresponding segment of requested, and len(granted) <= len(requested).
func Matches(granted, requested string) bool {
	g := strings.Split(granted, ":")
	r := strings.Split(requested, ":")
	if len(g) > len(r) {
		return false
	}
	for i, seg := range g {
		if seg == "*" {
			return true
		}
		if seg != r[i] {
			return false
		}
	}
	// Every granted segment matched; a prefix grant authorizes the more
	// specific request (relay:task covers relay:task:forward).
	return true
}

// CapabilitiesSubset reports whether every capability in child is matched
// by some capability in parent, i.e. child's grants are no broader than
// parent's.
func CapabilitiesSubset(child, parent []string) bool {
	for _, c := range child {
		authorized := false
		for _, p := range parent {
			if Matches(p, c) {
				authorized = true
				break
			}
		}
		if !authorized {
			return false
		}
	}
	return true
}

// Authorizes reports whether taskType is matched by at least one capability
// in capabilities.
func Authorizes(capabilities []string, taskType string) bool {
	for _, c := range capabilities {
		if Matches(c, taskType) {
			return true
		}
	}
	return false
}
