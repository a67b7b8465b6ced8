package settings

import (
	goversion "github.com/caarlos0/go-version"
)

// ResolveAppVersion derives the running application's version from its build
// information. Options are applied to the collected info, which lets callers
// inject a version stamped at link time. When no usable version can be found,
// MinVersion is returned together with ok=false.
func ResolveAppVersion(opts ...goversion.Option) (v Version, ok bool) {
	info := goversion.GetVersionInfo(opts...)
	parsed, err := ParseVersion(info.GitVersion)
	if err != nil {
		return MinVersion, false
	}
	return parsed, true
}

// WithAppVersion overrides the version reported by the build information.
func WithAppVersion(value string) goversion.Option {
	return func(info *goversion.Info) {
		if value != "" {
			info.GitVersion = value
		}
	}
}

// PreviousVersionOf returns the greatest version in recorded that is strictly
// less than current.
func PreviousVersionOf(current Version, recorded []Version) (Version, bool) {
	var (
		best  Version
		found bool
	)
	for _, v := range recorded {
		if !v.Less(current) {
			continue
		}
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}

// olderThan returns every recorded version strictly below current, deduplicated
// and ascending.
func olderThan(current Version, recorded []Version) []Version {
	out := make([]Version, 0, len(recorded))
	for _, v := range recorded {
		if v.Less(current) {
			out = append(out, v)
		}
	}
	return SortVersions(out)
}
