package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v69/github"
)

const defaultGitHubAPI = "https://api.github.com/"

var ErrGitHubRequest = errors.New("github request failed")

// GitHubPublisher commits the README through the GitHub contents API.
// Repo is "owner/name"; an empty Branch means the repository default.
type GitHubPublisher struct {
	Repo    string
	Path    string
	Branch  string
	Token   string
	Message string
	// BaseURL points the client at another API root, e.g. GitHub Enterprise
	BaseURL string
	Client  *http.Client
}

// NewGitHubPublisher creates a publisher for repo, committing to path
func NewGitHubPublisher(repo, path, branch, token string) *GitHubPublisher {
	return &GitHubPublisher{
		Repo:    repo,
		Path:    path,
		Branch:  branch,
		Token:   token,
		Message: "Update game board",
		BaseURL: defaultGitHubAPI,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *GitHubPublisher) newClient() (*github.Client, error) {
	client := github.NewClient(p.Client)
	if p.Token != "" {
		client = client.WithAuthToken(p.Token)
	}

	base := p.BaseURL
	if base == "" {
		base = defaultGitHubAPI
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base URL %q: %v", ErrGitHubRequest, p.BaseURL, err)
	}
	client.BaseURL = baseURL
	return client, nil
}

func (p *GitHubPublisher) ownerRepo() (string, string, error) {
	owner, repo, ok := strings.Cut(p.Repo, "/")
	if !ok || owner == "" || repo == "" || p.Path == "" {
		return "", "", fmt.Errorf("%w: repo (owner/name) and path are required", ErrGitHubRequest)
	}
	return owner, repo, nil
}

// currentSHA returns the blob sha of the existing file, "" if it does not
// exist yet.
func (p *GitHubPublisher) currentSHA(ctx context.Context, client *github.Client, owner, repo, path string) (string, error) {
	var opts *github.RepositoryContentGetOptions
	if p.Branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: p.Branch}
	}

	file, _, resp, err := client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get contents: %v", ErrGitHubRequest, err)
	}
	if file == nil {
		return "", fmt.Errorf("%w: %s is a directory", ErrGitHubRequest, path)
	}
	return file.GetSHA(), nil
}

func (p *GitHubPublisher) Publish(ctx context.Context, content []byte) error {
	owner, repo, err := p.ownerRepo()
	if err != nil {
		return err
	}
	client, err := p.newClient()
	if err != nil {
		return err
	}
	path := strings.TrimLeft(p.Path, "/")

	sha, err := p.currentSHA(ctx, client, owner, repo, path)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(p.Message),
		Content: content,
	}
	if p.Branch != "" {
		opts.Branch = github.Ptr(p.Branch)
	}

	// GetContents escapes the path itself, the write calls take it as a raw
	// URL segment
	rawPath := escapePath(path)
	if sha == "" {
		_, _, err = client.Repositories.CreateFile(ctx, owner, repo, rawPath, opts)
	} else {
		opts.SHA = github.Ptr(sha)
		_, _, err = client.Repositories.UpdateFile(ctx, owner, repo, rawPath, opts)
	}
	if err != nil {
		return fmt.Errorf("%w: put contents: %v", ErrGitHubRequest, err)
	}
	return nil
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
