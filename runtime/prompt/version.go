package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a pack version. It accepts an optional "v" prefix and
// requires MAJOR.MINOR.PATCH:
//
//	"1.0.0", "v2.1.3", "1.0.0-alpha", "1.0.0+build"   valid
//	"1.0", "v1", "latest", ""                          invalid
func ParseVersion(version string) (*semver.Version, error) {
	if version == "" {
		return nil, errors.New("version is empty")
	}

	// StrictNewVersion rejects "1.0", which NewVersion would complete to "1.0.0".
	v, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version: %w", err)
	}
	return v, nil
}

// CheckVersion reports whether version satisfies a constraint such as
// "^1.2" or ">= 1.0.0, < 2". An empty constraint accepts everything.
func CheckVersion(version *semver.Version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	if ok, errs := c.Validate(version); !ok {
		return fmt.Errorf("pack version %s does not satisfy %q: %w", version, constraint, errors.Join(errs...))
	}
	return nil
}
