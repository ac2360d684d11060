package scm

import (
	"context"
	"errors"
	"testing"

	"reviewhook/pkg/auth"
	"reviewhook/pkg/event"
)

type fakeClient struct {
	contents map[string][]byte
	errs     map[string]error
	calls    []string
}

func (f *fakeClient) GetDefaultBranch(ctx context.Context, repo event.Repository) (string, error) {
	return "main", nil
}

func (f *fakeClient) GetPullRequestByNumber(ctx context.Context, repo event.Repository, number int) (*event.PullRequest, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) GetFilesByPullRequestID(ctx context.Context, repo event.Repository, number int) ([]PullRequestFile, error) {
	return nil, nil
}

func (f *fakeClient) GetCommitsForPullRequest(ctx context.Context, repo event.Repository, number int) ([]Commit, error) {
	return nil, nil
}

func (f *fakeClient) GetRepositoryContentFile(ctx context.Context, repo event.Repository, path, ref string) ([]byte, error) {
	f.calls = append(f.calls, ref)
	if err, ok := f.errs[ref]; ok {
		return nil, err
	}
	return f.contents[ref], nil
}

// TestContentWithFallbackFirstRefWins confirms the lookup stops at the
// first ref that yields content and reports which ref served it.
func TestContentWithFallbackFirstRefWins(t *testing.T) {
	client := &fakeClient{contents: map[string][]byte{
		"feature/login": []byte("rules: head"),
		"main":          []byte("rules: default"),
	}}

	content, ref, err := ContentWithFallback(context.Background(), client, event.Repository{FullName: "acme/app"}, "config.yml", []string{"feature/login", "develop", "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "feature/login" {
		t.Fatalf("expected head ref to serve content, got %q", ref)
	}
	if string(content) != "rules: head" {
		t.Fatalf("unexpected content %q", content)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected a single fetch, got %d", len(client.calls))
	}
}

// TestContentWithFallbackSkipsDeletedRef covers the merged-branch case:
// the head ref is gone, so the base ref and then the default branch are
// tried in order.
func TestContentWithFallbackSkipsDeletedRef(t *testing.T) {
	client := &fakeClient{
		contents: map[string][]byte{"main": []byte("rules: default")},
		errs:     map[string]error{"feature/login": errors.New("404 ref not found")},
	}

	content, ref, err := ContentWithFallback(context.Background(), client, event.Repository{FullName: "acme/app"}, "config.yml", []string{"feature/login", "develop", "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "main" {
		t.Fatalf("expected default branch fallback, got %q", ref)
	}
	if string(content) != "rules: default" {
		t.Fatalf("unexpected content %q", content)
	}
}

// TestContentWithFallbackAllRefsFail reports the last error when no ref
// candidate yields content.
func TestContentWithFallbackAllRefsFail(t *testing.T) {
	client := &fakeClient{errs: map[string]error{
		"feature/login": errors.New("404"),
		"main":          errors.New("404"),
	}}

	_, _, err := ContentWithFallback(context.Background(), client, event.Repository{FullName: "acme/app"}, "config.yml", []string{"feature/login", "", "main"})
	if err == nil {
		t.Fatalf("expected an error when every ref fails")
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected empty refs to be skipped, got calls %v", client.calls)
	}
}

// TestParseUnifiedDiffFiles checks status detection and line counting on
// a representative multi-file diff.
func TestParseUnifiedDiffFiles(t *testing.T) {
	diff := `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"
-import "os"
diff --git a/docs/new.md b/docs/new.md
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/docs/new.md
@@ -0,0 +1,2 @@
+# Title
+body
diff --git a/old.txt b/old.txt
deleted file mode 100644
index 4444444..0000000
--- a/old.txt
+++ /dev/null
@@ -1,1 +0,0 @@
-gone
`

	files := parseUnifiedDiffFiles(diff)
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	if files[0].Filename != "main.go" || files[0].Status != "modified" {
		t.Fatalf("unexpected first entry: %+v", files[0])
	}
	if files[0].Additions != 1 || files[0].Deletions != 1 {
		t.Fatalf("unexpected line counts: %+v", files[0])
	}
	if files[1].Filename != "docs/new.md" || files[1].Status != "added" {
		t.Fatalf("unexpected second entry: %+v", files[1])
	}
	if files[2].Status != "removed" {
		t.Fatalf("unexpected third entry: %+v", files[2])
	}
}

// TestNewBitbucketClient covers the constructor paths: a missing token is
// rejected, a configured token yields a usable client.
func TestNewBitbucketClient(t *testing.T) {
	if _, err := newBitbucketClient(auth.ProviderConfig{}, ""); err == nil {
		t.Fatal("expected an error without a token")
	}
	client, err := newBitbucketClient(auth.ProviderConfig{}, "app-password-token")
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}
	if client == nil || client.api == nil {
		t.Fatal("expected a configured client")
	}
}
