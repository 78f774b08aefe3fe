package session

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// maxCommandBytes bounds command and install_cmd lengths.
const maxCommandBytes = 500

// forbiddenSubstrings are shell expansion forms rejected in any field that
// reaches the worker environment. The worker shell must never evaluate
// caller-controlled substitutions.
var forbiddenSubstrings = []string{"$(", "`", "${"}

// githubTreeRe matches github.com/{owner}/{repo}/tree/{ref} with an
// optional subpath, with or without a scheme.
var githubTreeRe = regexp.MustCompile(`^(?:https?://)?github\.com/[^/]+/[^/]+/tree/[^/]+(?:/.*)?$`)

// CreateParams carries the caller-supplied fields of a session request.
type CreateParams struct {
	CodeURL    string `json:"code_url"`
	Command    string `json:"command"`
	InstallCmd string `json:"install_cmd,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

// Validate checks the request against the admission rules: code_url must be
// a github tree, zip, tarball, or git URL; command and install_cmd must be
// free of shell expansion forms and bounded to 500 bytes each. Returned
// errors wrap ErrInvalidParams with a caller-safe detail message.
func (p CreateParams) Validate() error {
	if p.CodeURL == "" {
		return fmt.Errorf("%w: code_url is required", ErrInvalidParams)
	}
	if containsForbidden(p.CodeURL) {
		return fmt.Errorf("%w: code_url contains forbidden characters", ErrInvalidParams)
	}
	if !validCodeURL(p.CodeURL) {
		return fmt.Errorf("%w: code_url must be a github tree, zip, tar.gz, or git url", ErrInvalidParams)
	}

	if p.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidParams)
	}
	if len(p.Command) > maxCommandBytes {
		return fmt.Errorf("%w: command exceeds %d bytes", ErrInvalidParams, maxCommandBytes)
	}
	if containsForbidden(p.Command) {
		return fmt.Errorf("%w: command contains forbidden shell expansion", ErrInvalidParams)
	}

	if p.InstallCmd != "" {
		if len(p.InstallCmd) > maxCommandBytes {
			return fmt.Errorf("%w: install_cmd exceeds %d bytes", ErrInvalidParams, maxCommandBytes)
		}
		if containsForbidden(p.InstallCmd) {
			return fmt.Errorf("%w: install_cmd contains forbidden shell expansion", ErrInvalidParams)
		}
	}

	return nil
}

func containsForbidden(s string) bool {
	for _, sub := range forbiddenSubstrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func validCodeURL(raw string) bool {
	if githubTreeRe.MatchString(raw) {
		return true
	}
	// Archive suffixes match on the URL path so presigned URLs with query
	// strings still qualify; scp-style git addresses fail url.Parse and
	// fall through to the raw suffix check.
	if u, err := url.Parse(raw); err == nil && u.Path != "" && hasArchiveSuffix(u.Path) {
		return true
	}
	return hasArchiveSuffix(raw)
}

func hasArchiveSuffix(s string) bool {
	return strings.HasSuffix(s, ".zip") ||
		strings.HasSuffix(s, ".tar.gz") ||
		strings.HasSuffix(s, ".tgz") ||
		strings.HasSuffix(s, ".git")
}
