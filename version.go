package settings

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	hcversion "github.com/hashicorp/go-version"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("settings: invalid version")

// Version identifies the application release that produced a setting. Ordering
// and equality are component-wise.
type Version struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

// MinVersion is the smallest possible version. It stands in for the current
// version when the application identity cannot be resolved.
var MinVersion = Version{}

// NewVersion builds a Version from its four components.
func NewVersion(major, minor, build, revision int) Version {
	return Version{Major: major, Minor: minor, Build: build, Revision: revision}
}

// ParseVersion parses one to four dot separated numeric components, with an
// optional leading "v". Missing components default to zero. Prerelease and
// build metadata suffixes are accepted but not part of the result.
func ParseVersion(value string) (Version, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return Version{}, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	parsed, err := hcversion.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, value, err)
	}
	segments := parsed.Segments()
	if len(segments) > 4 {
		return Version{}, fmt.Errorf("%w: %q has %d components", ErrInvalidVersion, value, len(segments))
	}
	var parts [4]int
	copy(parts[:], segments)
	return Version{Major: parts[0], Minor: parts[1], Build: parts[2], Revision: parts[3]}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(value string) Version {
	v, err := ParseVersion(value)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 when v is less than, equal to or greater than other.
func (v Version) Compare(other Version) int {
	a := [4]int{v.Major, v.Minor, v.Build, v.Revision}
	b := [4]int{other.Major, other.Minor, other.Build, other.Revision}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other have identical components.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// IsZero reports whether v is MinVersion.
func (v Version) IsZero() bool {
	return v == MinVersion
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// SortVersions orders versions ascending in place and drops duplicates,
// returning the deduplicated slice.
func SortVersions(versions []Version) []Version {
	if len(versions) == 0 {
		return versions
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Less(versions[j])
	})
	out := versions[:1]
	for _, v := range versions[1:] {
		if !v.Equal(out[len(out)-1]) {
			out = append(out, v)
		}
	}
	return out
}
