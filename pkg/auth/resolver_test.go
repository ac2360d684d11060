package auth

import (
	"context"
	"testing"

	"reviewhook/pkg/event"
)

// TestResolveGitHubAppInstallation tests App auth via the payload
// installation id.
func TestResolveGitHubAppInstallation(t *testing.T) {
	resolver := NewResolver(Config{
		GitHub: GitHubConfig{AppID: 1234, PrivateKeyPath: "/keys/app.pem"},
	})

	authCtx, err := resolver.Resolve(context.Background(), event.PlatformGitHub, []byte(`{"installation":{"id":42}}`))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if authCtx.InstallationID != 42 {
		t.Fatalf("expected installation id 42, got %d", authCtx.InstallationID)
	}
}

// TestResolveGitHubTokenTakesPrecedence tests that a configured PAT wins
// over App settings.
func TestResolveGitHubTokenTakesPrecedence(t *testing.T) {
	resolver := NewResolver(Config{
		GitHub: GitHubConfig{Token: "pat", AppID: 1234, PrivateKeyPath: "/keys/app.pem"},
	})

	authCtx, err := resolver.Resolve(context.Background(), event.PlatformGitHub, []byte(`{}`))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if authCtx.Token != "pat" {
		t.Fatalf("expected token auth, got %+v", authCtx)
	}
}

// TestResolveMissingInstallation tests the error when App auth is
// configured but the payload lacks an installation.
func TestResolveMissingInstallation(t *testing.T) {
	resolver := NewResolver(Config{
		GitHub: GitHubConfig{AppID: 1234, PrivateKeyPath: "/keys/app.pem"},
	})

	if _, err := resolver.Resolve(context.Background(), event.PlatformGitHub, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing installation id")
	}
}

// TestResolveTokenPlatforms tests PAT resolution for the remaining
// platforms and the error on missing tokens.
func TestResolveTokenPlatforms(t *testing.T) {
	resolver := NewResolver(Config{
		GitLab:     ProviderConfig{Token: "glpat"},
		Bitbucket:  ProviderConfig{Token: "bbtoken"},
		AzureRepos: AzureConfig{Organization: "acme", Token: "azpat"},
	})

	for _, tc := range []struct {
		platform event.Platform
		token    string
	}{
		{event.PlatformGitLab, "glpat"},
		{event.PlatformBitbucket, "bbtoken"},
		{event.PlatformAzureRepos, "azpat"},
	} {
		authCtx, err := resolver.Resolve(context.Background(), tc.platform, []byte(`{}`))
		if err != nil {
			t.Fatalf("resolve %s: %v", tc.platform, err)
		}
		if authCtx.Token != tc.token {
			t.Fatalf("platform %s: expected token %q, got %q", tc.platform, tc.token, authCtx.Token)
		}
	}

	empty := NewResolver(Config{})
	if _, err := empty.Resolve(context.Background(), event.PlatformGitLab, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing gitlab token")
	}
}
