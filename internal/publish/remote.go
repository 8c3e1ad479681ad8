package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/woozymasta/srvdash/internal/vars"
)

// ErrRepoMissing is returned when the repository cannot be found after it was created.
var ErrRepoMissing = errors.New("repository does not exist")

// Remote manages repositories of one GitHub account.
type Remote struct {
	client *github.Client
	owner  string
}

// NewRemote creates a client for the API at apiURL authenticated with token.
// httpClient may be nil.
func NewRemote(apiURL, owner, token string, httpClient *http.Client) (*Remote, error) {
	client := github.NewClient(httpClient).WithAuthToken(token)
	client.UserAgent = vars.UserAgent()

	if apiURL != "" {
		base, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		client.BaseURL = base
	}

	return &Remote{client: client, owner: owner}, nil
}

// Get returns the repository, or ErrRepoMissing on 404.
func (r *Remote) Get(ctx context.Context, name string) (*github.Repository, error) {
	repo, resp, err := r.client.Repositories.Get(ctx, r.owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", ErrRepoMissing, r.owner, name)
		}
		return nil, fmt.Errorf("get repository %s/%s: %w", r.owner, name, err)
	}
	return repo, nil
}

// Exists reports whether the repository exists.
func (r *Remote) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Get(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRepoMissing):
		return false, nil
	}
	return false, err
}

// Create creates an empty repository for the authenticated user.
// It returns false without error when the repository already exists.
func (r *Remote) Create(ctx context.Context, name, description string, private bool) (bool, error) {
	_, resp, err := r.client.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(private),
		AutoInit:    github.Bool(false),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(err.Error(), "already exists") {
			return false, nil
		}
		return false, fmt.Errorf("create repository %s: %w", name, err)
	}
	return true, nil
}

// Delete removes the repository. GitHub answers 204 on success.
func (r *Remote) Delete(ctx context.Context, name string) error {
	resp, err := r.client.Repositories.Delete(ctx, r.owner, name)
	if err != nil {
		return fmt.Errorf("delete repository %s/%s: %w", r.owner, name, err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete repository %s/%s: unexpected status %d", r.owner, name, resp.StatusCode)
	}
	return nil
}

// PushURL returns the clone URL of repo carrying the credentials for git.
func (r *Remote) PushURL(repo *github.Repository, token string) (string, error) {
	raw := repo.GetCloneURL()
	if raw == "" {
		raw = fmt.Sprintf("https://github.com/%s/%s.git", r.owner, repo.GetName())
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse clone url: %w", err)
	}
	u.User = url.UserPassword(r.owner, token)
	return u.String(), nil
}
