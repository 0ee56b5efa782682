package platform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is an L4T release number such as 36.4.0.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// ParseVersion parses "36.4", "36.4.0" or "r36.4.0".
func ParseVersion(s string) (Version, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "r")
	parts := strings.Split(trimmed, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid L4T version %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid L4T version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// releasePattern matches the first line of /etc/nv_tegra_release:
//
//	# R36 (release), REVISION: 4.0, GCID: 37537400, BOARD: generic, EABI: aarch64, DATE: ...
var releasePattern = regexp.MustCompile(`R(\d+) \(release\), REVISION: (\d+)(?:\.(\d+))?`)

// boardPattern extracts the BOARD field.
var boardPattern = regexp.MustCompile(`BOARD: ([^,]+)`)

// Release is the parsed content of the L4T release file.
type Release struct {
	Version Version
	Board   string
}

// ParseRelease parses the content of /etc/nv_tegra_release.
func ParseRelease(content string) (Release, error) {
	m := releasePattern.FindStringSubmatch(content)
	if m == nil {
		return Release{}, fmt.Errorf("unrecognized L4T release string: %q", firstLine(content))
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}

	rel := Release{Version: Version{Major: major, Minor: minor, Patch: patch}}
	if b := boardPattern.FindStringSubmatch(content); b != nil {
		rel.Board = strings.TrimSpace(b[1])
	}
	return rel, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
