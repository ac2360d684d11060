// Package scm is the code-management facade: single-purpose read calls the
// processor uses to enrich webhook events. Each platform client maps its
// SDK or API shapes onto the platform-agnostic types here; fetch failures
// surface to callers as nil/empty plus an error the caller logs and
// tolerates.
package scm

import (
	"context"
	"errors"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
)

// PullRequestFile is one changed file in a pull request.
type PullRequestFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
}

// Commit is one commit reachable from a pull request's source branch.
type Commit struct {
	SHA     string
	Message string
}

// Client is the read-only facade over one platform's API.
type Client interface {
	GetDefaultBranch(ctx context.Context, repo event.Repository) (string, error)
	GetPullRequestByNumber(ctx context.Context, repo event.Repository, number int) (*event.PullRequest, error)
	GetFilesByPullRequestID(ctx context.Context, repo event.Repository, number int) ([]PullRequestFile, error)
	GetCommitsForPullRequest(ctx context.Context, repo event.Repository, number int) ([]Commit, error)
	GetRepositoryContentFile(ctx context.Context, repo event.Repository, path, ref string) ([]byte, error)
}

// Factory builds platform clients from resolved auth contexts.
type Factory struct {
	cfg auth.Config
}

// NewFactory creates a new Factory.
func NewFactory(cfg auth.Config) *Factory {
	return &Factory{cfg: cfg}
}

// NewClient creates a platform client from an AuthContext.
func (f *Factory) NewClient(ctx context.Context, authCtx auth.AuthContext) (Client, error) {
	switch authCtx.Platform {
	case event.PlatformGitHub:
		return newGitHubClient(ctx, f.cfg.GitHub, authCtx)
	case event.PlatformGitLab:
		return newGitLabClient(f.cfg.GitLab, authCtx.Token)
	case event.PlatformBitbucket:
		return newBitbucketClient(f.cfg.Bitbucket, authCtx.Token)
	case event.PlatformAzureRepos:
		return newAzureClient(f.cfg.AzureRepos, authCtx.Token)
	default:
		return nil, errors.New("unsupported platform for scm client")
	}
}

// ContentWithFallback fetches a file trying each ref candidate in order,
// stopping at the first ref that yields content. This covers merged PRs
// whose source branch was deleted: head ref first, then base ref, then the
// repository default branch.
func ContentWithFallback(ctx context.Context, client Client, repo event.Repository, path string, refCandidates []string) ([]byte, string, error) {
	var lastErr error
	for _, ref := range refCandidates {
		if ref == "" {
			continue
		}
		content, err := client.GetRepositoryContentFile(ctx, repo, path, ref)
		if err != nil {
			lastErr = err
			continue
		}
		if len(content) == 0 {
			continue
		}
		return content, ref, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no ref candidate yielded content")
	}
	return nil, "", lastErr
}
