// Package version checks GitHub for newer plugd releases.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RequestTimeout bounds the release lookup.
const RequestTimeout = 10 * time.Second

// ReleasesURL is the endpoint for fetching the latest release.
var ReleasesURL = "https://api.github.com/repos/surge-downloader/plugd/releases/latest"

// UpdateInfo contains information about an available update
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
	UpdateAvailable bool
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckForUpdate asks GitHub for the latest release and compares it with
// currentVersion. Development builds are never checked and yield nil, nil.
func CheckForUpdate(ctx context.Context, currentVersion string) (*UpdateInfo, error) {
	if currentVersion == "dev" || currentVersion == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleasesURL, nil)
	if err != nil {
		return nil, err
	}
	// GitHub requires a User-Agent
	req.Header.Set("User-Agent", "plugd-update-checker")
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup: unexpected status code: %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("release lookup: %w", err)
	}

	return &UpdateInfo{
		CurrentVersion:  currentVersion,
		LatestVersion:   rel.TagName,
		ReleaseURL:      rel.HTMLURL,
		UpdateAvailable: isNewerVersion(normalizeVersion(rel.TagName), normalizeVersion(currentVersion)),
	}, nil
}

// normalizeVersion removes the 'v' prefix and trims whitespace
func normalizeVersion(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}

// isNewerVersion compares MAJOR.MINOR.PATCH strings.
func isNewerVersion(latest, current string) bool {
	l, c := parseVersion(latest), parseVersion(current)
	for i := range l {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return false
}

// parseVersion parses a semver string into [major, minor, patch],
// ignoring pre-release and build suffixes.
func parseVersion(version string) [3]int {
	var parts [3]int
	segments := strings.Split(version, ".")
	for i := 0; i < len(segments) && i < 3; i++ {
		num := segments[i]
		if idx := strings.IndexAny(num, "-+"); idx != -1 {
			num = num[:idx]
		}
		_, _ = fmt.Sscanf(num, "%d", &parts[i])
	}
	return parts
}
