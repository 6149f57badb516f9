package util

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dixieflatline76/Jitter/config"
	"github.com/google/go-github/v63/github"
	"golang.org/x/mod/semver"
)

const (
	githubOwner = "dixieflatline76"
	githubRepo  = "Jitter"
)

// CheckForUpdatesResult holds the outcome of the update check.
type CheckForUpdatesResult struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
}

// CheckForUpdates asks GitHub for the latest stable release and compares it
// with config.AppVersion. A nil client uses http.DefaultClient.
func CheckForUpdates(ctx context.Context, client *http.Client) (*CheckForUpdatesResult, error) {
	gh := github.NewClient(client)

	release, _, err := gh.Repositories.GetLatestRelease(ctx, githubOwner, githubRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest GitHub release: %w", err)
	}

	current := canonicalVersion(config.AppVersion)
	latest := canonicalVersion(release.GetTagName())
	if !semver.IsValid(latest) {
		return nil, fmt.Errorf("release tag %q is not a semantic version", release.GetTagName())
	}

	return &CheckForUpdatesResult{
		UpdateAvailable: semver.Compare(latest, current) > 0,
		CurrentVersion:  current,
		LatestVersion:   latest,
		ReleaseURL:      release.GetHTMLURL(),
	}, nil
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
