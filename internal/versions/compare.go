// Package versions compares object version strings for diff annotations.
package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether remoteVersion is strictly greater than
// localVersion. Versions are compared as semver when both parse; otherwise
// the comparison falls back to lexicographic order, which covers the plain
// "1.0"-style strings most content types carry.
func IsNewerVersion(remoteVersion, localVersion string) bool {
	remoteSemver, errRemote := semver.NewVersion(remoteVersion)
	localSemver, errLocal := semver.NewVersion(localVersion)

	if errRemote != nil || errLocal != nil {
		return remoteVersion > localVersion
	}

	return remoteSemver.GreaterThan(localSemver)
}
