package client

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// XPipe versions look like "10.1", "10.1.2" or "10.1-12". A numeric "-N"
// suffix is a later build of the same release rather than a pre-release:
// 10.1 < 10.1-12 < 10.1.1.
var buildSuffix = regexp.MustCompile(`^(\d+(?:\.\d+){0,2})-(\d+)$`)

// Version is a parsed daemon version.
type Version struct {
	// Release is the X.Y.Z part.
	Release *semver.Version

	// Build is the "-N" suffix, or -1 when absent.
	Build int
}

// ParseVersion parses a daemon version string.
func ParseVersion(v string) (*Version, error) {
	release, build := v, -1
	if m := buildSuffix.FindStringSubmatch(v); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("parse version %q: %w", v, err)
		}
		release, build = m[1], n
	}
	parsed, err := semver.NewVersion(release)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", v, err)
	}
	return &Version{Release: parsed, Build: build}, nil
}

// Compare returns -1, 0 or 1. Releases are compared first, the build
// suffix only breaks ties.
func (v *Version) Compare(o *Version) int {
	if c := v.Release.Compare(o.Release); c != 0 {
		return c
	}
	switch {
	case v.Build < o.Build:
		return -1
	case v.Build > o.Build:
		return 1
	default:
		return 0
	}
}

// LessThan reports whether v sorts before o.
func (v *Version) LessThan(o *Version) bool {
	return v.Compare(o) < 0
}

func (v *Version) String() string {
	if v.Build < 0 {
		return v.Release.String()
	}
	return v.Release.String() + "-" + strconv.Itoa(v.Build)
}

// VersionError is returned when the daemon is older than the configured
// minimum version.
type VersionError struct {
	Required string
	Actual   string
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("client: daemon version %s is older than required %s", e.Actual, e.Required)
}

// checkVersion returns a *VersionError when actual < required.
func checkVersion(actual string, required *Version, requiredRaw string) error {
	v, err := ParseVersion(actual)
	if err != nil {
		return fmt.Errorf("daemon version: %w", err)
	}
	if v.LessThan(required) {
		return &VersionError{Required: requiredRaw, Actual: actual}
	}
	return nil
}
