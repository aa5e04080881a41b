package update

import (
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// versionRegex requires a numeric major.minor core with an optional patch
// and pre-release suffix.
var versionRegex = regexp.MustCompile(`^v?\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?$`)

// Version is a release version reduced to its numeric major.minor.patch triple.
type Version struct {
	Major int
	Minor int
	Patch int
	Raw   string
}

// ParseVersion parses a version string such as "1.2.3" or "v1.2".
// A missing patch is zero and a pre-release suffix is ignored. Single
// numbers, a fourth component and free-form tags are rejected.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version string")
	}
	if !versionRegex.MatchString(s) {
		return Version{}, fmt.Errorf("invalid version format: %s", s)
	}

	parsed, err := goversion.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version format: %s", s)
	}

	segments := parsed.Segments()
	v := Version{Raw: s}
	if len(segments) > 0 {
		v.Major = segments[0]
	}
	if len(segments) > 1 {
		v.Minor = segments[1]
	}
	if len(segments) > 2 {
		v.Patch = segments[2]
	}
	return v, nil
}

// String returns the canonical "major.minor.patch" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare compares two versions.
// Returns:
//
//	-1 if v < other
//	 0 if v == other
//	 1 if v > other
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return compareInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return compareInt(v.Minor, other.Minor)
	}
	return compareInt(v.Patch, other.Patch)
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// Equal returns true if v == other.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// IsUpdateAvailable reports whether latest is strictly newer than current.
// Unparseable input never reports an update, so a bad version string cannot
// cause an update loop.
func IsUpdateAvailable(current, latest string) bool {
	cur, err := ParseVersion(current)
	if err != nil {
		return false
	}
	lat, err := ParseVersion(latest)
	if err != nil {
		return false
	}
	return lat.GreaterThan(cur)
}

// IsCompatible reports whether current satisfies the minimum version a
// package can be applied on. An empty or unparseable minimum is compatible.
func IsCompatible(current, minimum string) bool {
	if strings.TrimSpace(minimum) == "" {
		return true
	}
	floor, err := ParseVersion(minimum)
	if err != nil {
		return true
	}
	cur, err := ParseVersion(current)
	if err != nil {
		return true
	}
	return !cur.LessThan(floor)
}

// NormalizeVersion removes the 'v' prefix if present
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}
