package stallone

import (
	"fmt"
	"strconv"
	"strings"
)

// Version represents a semantic version with major, minor, and patch components.
// Minor and Patch may be -1 if not specified (e.g., "17" parses as {17, -1, -1}).
type Version struct {
	// Major is the major version number (required).
	Major int

	// Minor is the minor version number (-1 if not specified).
	Minor int

	// Patch is the patch version number (-1 if not specified).
	Patch int
}

// ParseVersion parses a version string into a Version struct.
// Accepts formats: "X.Y.Z", "X.Y", or "X". Any trailing text is ignored.
//
// Examples:
//   - "17.0.2" -> {17, 0, 2}
//   - "11.0" -> {11, 0, -1}
//   - "21" -> {21, -1, -1}
//   - "22-ea" -> {22, -1, -1}
func ParseVersion(versionStr string) (Version, error) {
	version := Version{
		Minor: -1,
		Patch: -1,
	}
	_, err := fmt.Sscanf(versionStr, "%d.%d.%d", &version.Major, &version.Minor, &version.Patch)
	if err != nil {
		version.Minor, version.Patch = -1, -1
		// If the version string is not in the format "X.Y.Z", try parsing it as "X.Y"
		_, err = fmt.Sscanf(versionStr, "%d.%d", &version.Major, &version.Minor)
		if err != nil {
			version.Minor = -1
			// If the version string is not in the format "X.Y", try parsing it as "X"
			_, err = fmt.Sscanf(versionStr, "%d", &version.Major)
			if err != nil {
				return Version{}, fmt.Errorf("error parsing version: %v", err)
			}
		}
	}
	if version.Major < 0 || version.Minor < -1 || version.Patch < -1 {
		return Version{}, fmt.Errorf("invalid version: %s", versionStr)
	}
	return version, nil
}

// ParseJavaVersion parses the first line of "java -version", e.g.
//
//	openjdk version "17.0.2" 2022-01-18
//	java version "1.8.0_292"
//
// Legacy "1.x" versions are reported by their feature number, so 1.8.0_292 is
// {8, 0, 292}, the update number standing in for the patch.
func ParseJavaVersion(output string) (Version, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	start := strings.IndexByte(line, '"')
	if start < 0 || !strings.Contains(line, "version") {
		return Version{}, fmt.Errorf("invalid version string: %s", line)
	}
	quoted, _, ok := strings.Cut(line[start+1:], `"`)
	if !ok || quoted == "" {
		return Version{}, fmt.Errorf("invalid version string: %s", line)
	}

	if !strings.HasPrefix(quoted, "1.") {
		return ParseVersion(quoted)
	}

	legacy, update, hasUpdate := strings.Cut(strings.TrimPrefix(quoted, "1."), "_")
	v, err := ParseVersion(legacy)
	if err != nil {
		return Version{}, err
	}
	if hasUpdate {
		digits := update
		if i := strings.IndexFunc(update, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
			digits = update[:i]
		}
		if u, err := strconv.Atoi(digits); err == nil {
			if v.Minor == -1 {
				v.Minor = 0
			}
			v.Patch = u
		}
	}
	return v, nil
}

// Compare returns -1 if v < other, 0 if v == other, or 1 if v > other.
// Comparison is done component by component (major, then minor, then patch).
func (v *Version) Compare(other Version) int {
	if v.Major > other.Major {
		return 1
	}
	if v.Major < other.Major {
		return -1
	}
	if v.Minor > other.Minor {
		return 1
	}
	if v.Minor < other.Minor {
		return -1
	}
	if v.Patch > other.Patch {
		return 1
	}
	if v.Patch < other.Patch {
		return -1
	}
	return 0
}

// String returns the version as a string, omitting unspecified components.
// Examples: "17.0.2", "11.0", "21"
func (v *Version) String() string {
	if v.Patch != -1 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != -1 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d", v.Major)
}
