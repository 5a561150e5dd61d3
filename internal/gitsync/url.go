package gitsync

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRemoteURL indicates the remote URL is not a recognized git URL form.
var ErrInvalidRemoteURL = errors.New("invalid remote URL format")

var (
	// Matches: git@github.com:org/repo.git or git@github.com:org/subgroup/repo.git
	sshScpPattern = regexp.MustCompile(`^git@([^:]+):(.+?)(?:\.git)?$`)

	// Matches: ssh://git@github.com/org/repo.git
	sshURLPattern = regexp.MustCompile(`^ssh://git@([^/]+)/(.+?)(?:\.git)?$`)

	// Matches: https://github.com/org/repo.git, with optional embedded userinfo
	httpsPattern = regexp.MustCompile(`^https?://(?:[^@/]+@)?([^/]+)/(.+?)(?:\.git)?$`)
)

// AuthenticatedRemote rewrites any supported remote URL form into an HTTPS
// URL carrying the access token, which is the only form the subprocess
// driver pushes to. SSH and SCP style remotes are converted to HTTPS.
func AuthenticatedRemote(remote, token string) (string, error) {
	remote = strings.TrimSpace(remote)

	for _, pattern := range []*regexp.Regexp{sshScpPattern, sshURLPattern, httpsPattern} {
		if matches := pattern.FindStringSubmatch(remote); matches != nil {
			host, path := matches[1], matches[2]
			return fmt.Sprintf("https://oauth2:%s@%s/%s.git", token, host, path), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRemoteURL, remote)
}

// RedactToken masks the token portion of an authenticated remote URL so it
// can be logged.
func RedactToken(url string) string {
	start := strings.Index(url, "oauth2:")
	if start < 0 {
		return url
	}
	end := strings.Index(url[start:], "@")
	if end < 0 {
		return url
	}
	return url[:start] + "oauth2:****" + url[start+end:]
}

var unsafeTitleChars = strings.NewReplacer(
	`\`, "_", `/`, "_", `:`, "_", `*`, "_", `?`, "_",
	`"`, "_", `<`, "_", `>`, "_", `|`, "_",
)

// SanitizeTitle converts a document or block title into a filesystem-safe
// name. Distinct titles may collapse to the same name; the on-disk naming
// contract accepts that collision.
func SanitizeTitle(title string) string {
	name := strings.TrimSpace(unsafeTitleChars.Replace(title))
	if name == "" {
		return "untitled"
	}
	// A directory named ".git" would shadow the working copy metadata.
	if name == ".git" {
		return "_git"
	}
	return name
}
