package scm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
	"reviewhook/pkg/mapper"
)

const azureAPIVersion = "7.0"

// azureClient talks to the Azure DevOps Git REST API directly. There is
// no maintained Go SDK covering the pull-request surface this facade
// needs, so requests are built by hand with PAT basic auth.
type azureClient struct {
	organization string
	token        string
	baseURL      string
	client       *http.Client
}

func newAzureClient(cfg auth.AzureConfig, token string) (*azureClient, error) {
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		return nil, errors.New("azure repos token is required")
	}
	if cfg.Organization == "" {
		return nil, errors.New("azure repos organization is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://dev.azure.com"
	}
	return &azureClient{
		organization: cfg.Organization,
		token:        token,
		baseURL:      base,
		client:       &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// repoPath builds the project-scoped repository path. The webhook carries
// the repository GUID; the "Project/Name" full name is the fallback.
func (c *azureClient) repoPath(repo event.Repository) (string, error) {
	if repo.ID != "" && !strings.Contains(repo.FullName, "/") {
		return fmt.Sprintf("%s/%s/_apis/git/repositories/%s",
			c.baseURL, url.PathEscape(c.organization), url.PathEscape(repo.ID)), nil
	}
	parts := strings.SplitN(repo.FullName, "/", 2)
	if len(parts) == 2 && parts[0] != "" {
		identifier := repo.ID
		if identifier == "" {
			identifier = parts[1]
		}
		return fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s",
			c.baseURL, url.PathEscape(c.organization), url.PathEscape(parts[0]), url.PathEscape(identifier)), nil
	}
	if repo.ID == "" {
		return "", fmt.Errorf("cannot address azure repository %q", repo.FullName)
	}
	return fmt.Sprintf("%s/%s/_apis/git/repositories/%s",
		c.baseURL, url.PathEscape(c.organization), url.PathEscape(repo.ID)), nil
}

func (c *azureClient) GetDefaultBranch(ctx context.Context, repo event.Repository) (string, error) {
	path, err := c.repoPath(repo)
	if err != nil {
		return "", err
	}
	var out struct {
		DefaultBranch string `json:"defaultBranch"`
	}
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return "", err
	}
	return mapper.TrimRefPrefix(out.DefaultBranch), nil
}

func (c *azureClient) GetPullRequestByNumber(ctx context.Context, repo event.Repository, number int) (*event.PullRequest, error) {
	path, err := c.repoPath(repo)
	if err != nil {
		return nil, err
	}
	var out struct {
		PullRequestID int    `json:"pullRequestId"`
		Title         string `json:"title"`
		Description   string `json:"description"`
		Status        string `json:"status"`
		IsDraft       bool   `json:"isDraft"`
		SourceRefName string `json:"sourceRefName"`
		TargetRefName string `json:"targetRefName"`
		MergeStatus   string `json:"mergeStatus"`
		URL           string `json:"url"`
		CreatedBy     struct {
			ID          string `json:"id"`
			UniqueName  string `json:"uniqueName"`
			DisplayName string `json:"displayName"`
		} `json:"createdBy"`
		LastMergeSourceCommit struct {
			CommitID string `json:"commitId"`
		} `json:"lastMergeSourceCommit"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/pullrequests/%d", path, number), nil, &out); err != nil {
		return nil, err
	}

	state := event.StateOpen
	switch out.Status {
	case "completed":
		state = event.StateMerged
	case "abandoned":
		state = event.StateClosed
	}
	return &event.PullRequest{
		Number:           out.PullRequestID,
		Title:            out.Title,
		Body:             out.Description,
		State:            state,
		IsDraft:          out.IsDraft,
		HeadRef:          mapper.TrimRefPrefix(out.SourceRefName),
		BaseRef:          mapper.TrimRefPrefix(out.TargetRefName),
		HeadRepoFullName: repo.FullName,
		BaseRepoFullName: repo.FullName,
		HeadSHA:          out.LastMergeSourceCommit.CommitID,
		URL:              out.URL,
		Author: event.User{
			ID:          out.CreatedBy.ID,
			Username:    out.CreatedBy.UniqueName,
			DisplayName: out.CreatedBy.DisplayName,
		},
	}, nil
}

func (c *azureClient) GetFilesByPullRequestID(ctx context.Context, repo event.Repository, number int) ([]PullRequestFile, error) {
	path, err := c.repoPath(repo)
	if err != nil {
		return nil, err
	}

	var iterations struct {
		Value []struct {
			ID int `json:"id"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/pullrequests/%d/iterations", path, number), nil, &iterations); err != nil {
		return nil, err
	}
	if len(iterations.Value) == 0 {
		return nil, nil
	}
	last := iterations.Value[len(iterations.Value)-1].ID

	var changes struct {
		ChangeEntries []struct {
			ChangeType string `json:"changeType"`
			Item       struct {
				Path string `json:"path"`
			} `json:"item"`
		} `json:"changeEntries"`
	}
	endpoint := fmt.Sprintf("%s/pullrequests/%d/iterations/%d/changes", path, number, last)
	if err := c.getJSON(ctx, endpoint, nil, &changes); err != nil {
		return nil, err
	}

	files := make([]PullRequestFile, 0, len(changes.ChangeEntries))
	for _, entry := range changes.ChangeEntries {
		status := "modified"
		switch {
		case strings.Contains(entry.ChangeType, "add"):
			status = "added"
		case strings.Contains(entry.ChangeType, "delete"):
			status = "removed"
		case strings.Contains(entry.ChangeType, "rename"):
			status = "renamed"
		}
		files = append(files, PullRequestFile{
			Filename: strings.TrimPrefix(entry.Item.Path, "/"),
			Status:   status,
		})
	}
	return files, nil
}

func (c *azureClient) GetCommitsForPullRequest(ctx context.Context, repo event.Repository, number int) ([]Commit, error) {
	path, err := c.repoPath(repo)
	if err != nil {
		return nil, err
	}
	var out struct {
		Value []struct {
			CommitID string `json:"commitId"`
			Comment  string `json:"comment"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/pullrequests/%d/commits", path, number), nil, &out); err != nil {
		return nil, err
	}
	commits := make([]Commit, 0, len(out.Value))
	for _, entry := range out.Value {
		commits = append(commits, Commit{SHA: entry.CommitID, Message: entry.Comment})
	}
	return commits, nil
}

func (c *azureClient) GetRepositoryContentFile(ctx context.Context, repo event.Repository, path, ref string) ([]byte, error) {
	repoPath, err := c.repoPath(repo)
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"path":                      {path},
		"versionDescriptor.version": {ref},
		"includeContent":            {"true"},
	}
	req, err := c.newRequest(ctx, fmt.Sprintf("%s/items", repoPath), query)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("azure item %s not found at %s", path, ref)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure api error %d: %s", resp.StatusCode, string(raw))
	}
	return io.ReadAll(resp.Body)
}

func (c *azureClient) newRequest(ctx context.Context, endpoint string, query url.Values) (*http.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(":" + c.token))
	req.Header.Set("Authorization", "Basic "+basic)
	return req, nil
}

func (c *azureClient) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, endpoint, query)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("azure api error %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}
