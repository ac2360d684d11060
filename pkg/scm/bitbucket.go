package scm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	bb "github.com/ktrysmt/go-bitbucket"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
)

// bitbucketClient wraps the go-bitbucket SDK. Several pull-request calls
// in that SDK return loosely typed values, so this client decodes the
// response maps field by field and tolerates absent keys.
type bitbucketClient struct {
	api *bb.Client
}

func newBitbucketClient(cfg auth.ProviderConfig, token string) (*bitbucketClient, error) {
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		return nil, errors.New("bitbucket token is required")
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		_ = os.Setenv("BITBUCKET_API_BASE_URL", base)
	}
	api, err := bb.NewOAuthbearerToken(token)
	if err != nil {
		return nil, err
	}
	return &bitbucketClient{api: api}, nil
}

// splitWorkspace breaks "workspace/slug" into its two halves.
func splitWorkspace(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid bitbucket repository name %q", fullName)
	}
	return parts[0], parts[1], nil
}

func (c *bitbucketClient) GetDefaultBranch(ctx context.Context, repo event.Repository) (string, error) {
	owner, slug, err := splitWorkspace(repo.FullName)
	if err != nil {
		return "", err
	}
	result, err := c.api.Repositories.Repository.Get(&bb.RepositoryOptions{
		Owner:    owner,
		RepoSlug: slug,
	})
	if err != nil {
		return "", err
	}
	return result.Mainbranch.Name, nil
}

func (c *bitbucketClient) GetPullRequestByNumber(ctx context.Context, repo event.Repository, number int) (*event.PullRequest, error) {
	owner, slug, err := splitWorkspace(repo.FullName)
	if err != nil {
		return nil, err
	}
	raw, err := c.api.Repositories.PullRequests.Get(&bb.PullRequestsOptions{
		Owner:    owner,
		RepoSlug: slug,
		ID:       strconv.Itoa(number),
	})
	if err != nil {
		return nil, err
	}
	body, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected bitbucket pull request response shape")
	}

	pr := &event.PullRequest{
		Number:  number,
		Title:   bbString(body, "title"),
		Body:    bbString(body, "description"),
		IsDraft: bbBool(body, "draft"),
		URL:     bbString(bbMap(bbMap(body, "links"), "html"), "href"),
	}
	switch bbString(body, "state") {
	case "MERGED":
		pr.State = event.StateMerged
	case "DECLINED", "SUPERSEDED":
		pr.State = event.StateClosed
	default:
		pr.State = event.StateOpen
	}
	if source := bbMap(body, "source"); source != nil {
		pr.HeadRef = bbString(bbMap(source, "branch"), "name")
		pr.HeadRepoFullName = bbString(bbMap(source, "repository"), "full_name")
		pr.HeadSHA = bbString(bbMap(source, "commit"), "hash")
	}
	if dest := bbMap(body, "destination"); dest != nil {
		pr.BaseRef = bbString(bbMap(dest, "branch"), "name")
		pr.BaseRepoFullName = bbString(bbMap(dest, "repository"), "full_name")
	}
	if author := bbMap(body, "author"); author != nil {
		pr.Author = event.User{
			ID:          bbString(author, "uuid"),
			Username:    bbString(author, "nickname"),
			DisplayName: bbString(author, "display_name"),
		}
	}
	return pr, nil
}

func (c *bitbucketClient) GetFilesByPullRequestID(ctx context.Context, repo event.Repository, number int) ([]PullRequestFile, error) {
	owner, slug, err := splitWorkspace(repo.FullName)
	if err != nil {
		return nil, err
	}
	raw, err := c.api.Repositories.PullRequests.Diff(&bb.PullRequestsOptions{
		Owner:    owner,
		RepoSlug: slug,
		ID:       strconv.Itoa(number),
	})
	if err != nil {
		return nil, err
	}
	diff, err := bbRawText(raw)
	if err != nil {
		return nil, err
	}
	return parseUnifiedDiffFiles(diff), nil
}

func (c *bitbucketClient) GetCommitsForPullRequest(ctx context.Context, repo event.Repository, number int) ([]Commit, error) {
	owner, slug, err := splitWorkspace(repo.FullName)
	if err != nil {
		return nil, err
	}
	raw, err := c.api.Repositories.PullRequests.Commits(&bb.PullRequestsOptions{
		Owner:    owner,
		RepoSlug: slug,
		ID:       strconv.Itoa(number),
	})
	if err != nil {
		return nil, err
	}
	body, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected bitbucket commits response shape")
	}
	values, _ := body["values"].([]interface{})
	commits := make([]Commit, 0, len(values))
	for _, value := range values {
		entry, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		commits = append(commits, Commit{
			SHA:     bbString(entry, "hash"),
			Message: bbString(entry, "message"),
		})
	}
	return commits, nil
}

func (c *bitbucketClient) GetRepositoryContentFile(ctx context.Context, repo event.Repository, path, ref string) ([]byte, error) {
	owner, slug, err := splitWorkspace(repo.FullName)
	if err != nil {
		return nil, err
	}
	blob, err := c.api.Repositories.Repository.GetFileBlob(&bb.RepositoryBlobOptions{
		Owner:    owner,
		RepoSlug: slug,
		Ref:      ref,
		Path:     path,
	})
	if err != nil {
		return nil, err
	}
	return blob.Content, nil
}

// bbRawText normalizes the SDK's loosely typed diff payload to text.
func bbRawText(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case io.ReadCloser:
		defer v.Close()
		data, err := io.ReadAll(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unexpected bitbucket diff response type %T", raw)
	}
}

// parseUnifiedDiffFiles extracts per-file entries from a unified diff.
// Bitbucket has no per-PR file listing endpoint, so the diff headers are
// the source of truth for changed paths.
func parseUnifiedDiffFiles(diff string) []PullRequestFile {
	var files []PullRequestFile
	var current *PullRequestFile

	scanner := bufio.NewScanner(bytes.NewBufferString(diff))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			if current != nil {
				files = append(files, *current)
			}
			current = &PullRequestFile{
				Filename: diffHeaderPath(line),
				Status:   "modified",
			}
		case current == nil:
			continue
		case strings.HasPrefix(line, "new file mode"):
			current.Status = "added"
		case strings.HasPrefix(line, "deleted file mode"):
			current.Status = "removed"
		case strings.HasPrefix(line, "rename to "):
			current.Status = "renamed"
			current.Filename = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "+++ b/"):
			current.Filename = strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			current.Additions++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			current.Deletions++
		}
	}
	if current != nil {
		files = append(files, *current)
	}
	return files
}

// diffHeaderPath pulls the b-side path out of a "diff --git a/x b/x" line.
func diffHeaderPath(line string) string {
	idx := strings.Index(line, " b/")
	if idx < 0 {
		return ""
	}
	return line[idx+len(" b/"):]
}

func bbMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	value, _ := m[key].(map[string]interface{})
	return value
}

func bbString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	value, _ := m[key].(string)
	return value
}

func bbBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	value, _ := m[key].(bool)
	return value
}
