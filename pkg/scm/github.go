package scm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
)

// githubClient wraps the official SDK behind the facade.
type githubClient struct {
	api *gh.Client
}

func newGitHubClient(ctx context.Context, cfg auth.GitHubConfig, authCtx auth.AuthContext) (*githubClient, error) {
	token := authCtx.Token
	if token == "" {
		if authCtx.InstallationID == 0 {
			return nil, errors.New("github auth context has neither token nor installation")
		}
		authenticator := newGitHubAppAuthenticator(cfg)
		exchanged, err := authenticator.installationToken(ctx, authCtx.InstallationID)
		if err != nil {
			return nil, err
		}
		token = exchanged
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL != "" && baseURL != githubDefaultBaseURL {
		api, err := gh.NewClient(httpClient).WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, err
		}
		return &githubClient{api: api}, nil
	}
	return &githubClient{api: gh.NewClient(httpClient)}, nil
}

// splitFullName turns "owner/repo" into its parts.
func splitFullName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed repository full name: %q", fullName)
	}
	return parts[0], parts[1], nil
}

func (c *githubClient) GetDefaultBranch(ctx context.Context, repo event.Repository) (string, error) {
	owner, name, err := splitFullName(repo.FullName)
	if err != nil {
		return "", err
	}
	fetched, _, err := c.api.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", err
	}
	return fetched.GetDefaultBranch(), nil
}

func (c *githubClient) GetPullRequestByNumber(ctx context.Context, repo event.Repository, number int) (*event.PullRequest, error) {
	owner, name, err := splitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}
	pr, _, err := c.api.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, err
	}

	state := event.StateOpen
	if pr.GetState() == "closed" {
		state = event.StateClosed
		if pr.GetMerged() {
			state = event.StateMerged
		}
	}
	return &event.PullRequest{
		Number:           pr.GetNumber(),
		Title:            pr.GetTitle(),
		Body:             pr.GetBody(),
		State:            state,
		IsDraft:          pr.GetDraft(),
		HeadRef:          pr.GetHead().GetRef(),
		BaseRef:          pr.GetBase().GetRef(),
		HeadRepoFullName: pr.GetHead().GetRepo().GetFullName(),
		BaseRepoFullName: pr.GetBase().GetRepo().GetFullName(),
		HeadSHA:          pr.GetHead().GetSHA(),
		Author: event.User{
			ID:          fmt.Sprintf("%d", pr.GetUser().GetID()),
			Username:    pr.GetUser().GetLogin(),
			DisplayName: pr.GetUser().GetLogin(),
		},
		URL: pr.GetHTMLURL(),
	}, nil
}

func (c *githubClient) GetFilesByPullRequestID(ctx context.Context, repo event.Repository, number int) ([]PullRequestFile, error) {
	owner, name, err := splitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}

	var files []PullRequestFile
	opts := &gh.ListOptions{PerPage: 100}
	for {
		page, resp, err := c.api.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range page {
			files = append(files, PullRequestFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (c *githubClient) GetCommitsForPullRequest(ctx context.Context, repo event.Repository, number int) ([]Commit, error) {
	owner, name, err := splitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	opts := &gh.ListOptions{PerPage: 100}
	for {
		page, resp, err := c.api.PullRequests.ListCommits(ctx, owner, name, number, opts)
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			commits = append(commits, Commit{
				SHA:     c.GetSHA(),
				Message: c.GetCommit().GetMessage(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return commits, nil
}

func (c *githubClient) GetRepositoryContentFile(ctx context.Context, repo event.Repository, path, ref string) ([]byte, error) {
	owner, name, err := splitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}
	file, _, _, err := c.api.Repositories.GetContents(ctx, owner, name, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}
