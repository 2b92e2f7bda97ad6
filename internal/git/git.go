// Package git reads repository facts used to prefill a project from a
// local checkout.
package git

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Client defines the git operations used when importing a checkout.
// All methods take the path of a directory inside the repository.
type Client interface {
	RepoRoot(path string) (string, error)
	RemoteURL(path string) (string, error)
	FirstCommitDate(path string) (time.Time, error)
	LastCommitDate(path string) (time.Time, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

// RemoteURL returns the origin URL, or "" when there is no origin.
func (c *RealClient) RemoteURL(path string) (string, error) {
	out, err := gitCmd(path, "remote", "get-url", "origin")
	if err != nil {
		return "", nil
	}
	return out, nil
}

// FirstCommitDate returns the author date of the root commit.
func (c *RealClient) FirstCommitDate(path string) (time.Time, error) {
	out, err := gitCmd(path, "log", "--reverse", "--format=%aI")
	if err != nil {
		return time.Time{}, err
	}
	first, _, _ := strings.Cut(out, "\n")
	return time.Parse(time.RFC3339, first)
}

func (c *RealClient) LastCommitDate(path string) (time.Time, error) {
	out, err := gitCmd(path, "log", "-1", "--format=%aI")
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, out)
}

// WebURL turns a remote URL into a browsable https link. SSH remotes of the
// form git@host:owner/repo.git and ssh://git@host/owner/repo.git are
// rewritten; https remotes lose their .git suffix and any credentials.
func WebURL(remoteURL string) (string, error) {
	u := strings.TrimSpace(remoteURL)
	if u == "" {
		return "", fmt.Errorf("empty remote URL")
	}

	switch {
	case strings.HasPrefix(u, "git@"):
		hostPath := strings.TrimPrefix(u, "git@")
		host, path, ok := strings.Cut(hostPath, ":")
		if !ok || host == "" || path == "" {
			return "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		u = "https://" + host + "/" + path
	case strings.HasPrefix(u, "ssh://"):
		rest := strings.TrimPrefix(u, "ssh://")
		if _, after, ok := strings.Cut(rest, "@"); ok {
			rest = after
		}
		u = "https://" + rest
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"):
		scheme, rest, _ := strings.Cut(u, "://")
		if at := strings.Index(rest, "@"); at >= 0 && at < strings.Index(rest+"/", "/") {
			rest = rest[at+1:]
		}
		u = scheme + "://" + rest
	default:
		return "", fmt.Errorf("unsupported remote URL: %s", remoteURL)
	}

	u = strings.TrimSuffix(strings.TrimSuffix(u, "/"), ".git")
	if strings.Count(u, "/") < 4 {
		return "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
	}
	return u, nil
}
