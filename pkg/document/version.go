package document

import (
	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders a and b numerically by MAJOR.MINOR.PATCH.
// It returns -1, 0 or 1. ok is false when either side does not parse.
func CompareVersions(a, b string) (cmp int, ok bool) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, false
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, false
	}
	return va.Compare(vb), true
}

// IsNewer reports whether candidate is strictly greater than current.
// Unparseable versions are never newer.
func IsNewer(candidate, current string) bool {
	cmp, ok := CompareVersions(candidate, current)
	return ok && cmp > 0
}

// ValidVersion reports whether v is a plain MAJOR.MINOR.PATCH triple.
func ValidVersion(v string) bool {
	return versionPattern.MatchString(v)
}

// NextPatchVersion suggests the version following current. An unparseable
// current version yields "1.0.1".
func NextPatchVersion(current string) string {
	v, err := semver.NewVersion(current)
	if err != nil {
		return "1.0.1"
	}
	next := v.IncPatch()
	return next.String()
}
