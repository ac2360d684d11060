package scm

import (
	"context"
	"errors"
	"strconv"

	gl "github.com/xanzy/go-gitlab"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
)

// gitlabClient wraps the go-gitlab SDK. GitLab projects are addressed by
// the numeric id carried in the webhook, so full-name parsing is not
// needed.
type gitlabClient struct {
	api *gl.Client
}

func newGitLabClient(cfg auth.ProviderConfig, token string) (*gitlabClient, error) {
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		return nil, errors.New("gitlab token is required")
	}

	opts := []gl.ClientOptionFunc{}
	if cfg.BaseURL != "" {
		opts = append(opts, gl.WithBaseURL(cfg.BaseURL))
	}
	api, err := gl.NewClient(token, opts...)
	if err != nil {
		return nil, err
	}
	return &gitlabClient{api: api}, nil
}

// projectID picks the webhook's numeric project id, falling back to the
// path form go-gitlab also accepts.
func (c *gitlabClient) projectID(repo event.Repository) interface{} {
	if repo.ID != "" {
		return repo.ID
	}
	return repo.FullName
}

func (c *gitlabClient) GetDefaultBranch(ctx context.Context, repo event.Repository) (string, error) {
	project, _, err := c.api.Projects.GetProject(c.projectID(repo), nil, gl.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return project.DefaultBranch, nil
}

func (c *gitlabClient) GetPullRequestByNumber(ctx context.Context, repo event.Repository, number int) (*event.PullRequest, error) {
	mr, _, err := c.api.MergeRequests.GetMergeRequest(c.projectID(repo), number, nil, gl.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	state := event.StateOpen
	switch mr.State {
	case "closed":
		state = event.StateClosed
	case "merged":
		state = event.StateMerged
	}

	pr := &event.PullRequest{
		Number:           mr.IID,
		Title:            mr.Title,
		Body:             mr.Description,
		State:            state,
		IsDraft:          mr.Draft || mr.WorkInProgress,
		HeadRef:          mr.SourceBranch,
		BaseRef:          mr.TargetBranch,
		HeadRepoFullName: repo.FullName,
		BaseRepoFullName: repo.FullName,
		HeadSHA:          mr.SHA,
		URL:              mr.WebURL,
	}
	if mr.Author != nil {
		pr.Author = event.User{
			ID:          gitlabUserID(mr.Author.ID),
			Username:    mr.Author.Username,
			DisplayName: mr.Author.Name,
		}
	}
	return pr, nil
}

func (c *gitlabClient) GetFilesByPullRequestID(ctx context.Context, repo event.Repository, number int) ([]PullRequestFile, error) {
	diffs, _, err := c.api.MergeRequests.ListMergeRequestDiffs(c.projectID(repo), number, &gl.ListMergeRequestDiffsOptions{}, gl.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	files := make([]PullRequestFile, 0, len(diffs))
	for _, diff := range diffs {
		status := "modified"
		switch {
		case diff.NewFile:
			status = "added"
		case diff.DeletedFile:
			status = "removed"
		case diff.RenamedFile:
			status = "renamed"
		}
		files = append(files, PullRequestFile{
			Filename: diff.NewPath,
			Status:   status,
		})
	}
	return files, nil
}

func (c *gitlabClient) GetCommitsForPullRequest(ctx context.Context, repo event.Repository, number int) ([]Commit, error) {
	commits, _, err := c.api.MergeRequests.GetMergeRequestCommits(c.projectID(repo), number, &gl.GetMergeRequestCommitsOptions{}, gl.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	out := make([]Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, Commit{SHA: commit.ID, Message: commit.Message})
	}
	return out, nil
}

func (c *gitlabClient) GetRepositoryContentFile(ctx context.Context, repo event.Repository, path, ref string) ([]byte, error) {
	content, _, err := c.api.RepositoryFiles.GetRawFile(c.projectID(repo), path, &gl.GetRawFileOptions{Ref: gl.Ptr(ref)}, gl.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return content, nil
}

func gitlabUserID(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}
