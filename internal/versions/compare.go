package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether candidate is a strictly greater semantic version than
// current. Versions that do not parse as semver, such as "dev" builds, are never newer
// and never older than anything.
func IsNewerVersion(candidate, current string) bool {
	candidateSemver, err := semver.NewVersion(candidate)
	if err != nil {
		return false
	}
	currentSemver, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return candidateSemver.GreaterThan(currentSemver)
}

// IsNewerThanRunning reports whether candidate is newer than the running binary
func IsNewerThanRunning(candidate string) bool {
	return IsNewerVersion(candidate, GetVersionInfo().Version)
}
