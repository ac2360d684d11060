// Package auth resolves API credentials for webhook events so the
// enrichment clients can call back into the platform the event came from.
package auth

import (
	"context"
	"encoding/json"
	"errors"

	"reviewhook/pkg/event"
)

// AuthContext contains the resolved authentication data for one event.
type AuthContext struct {
	Platform       event.Platform
	InstallationID int64
	Token          string
}

// Resolver resolves authentication for a webhook event.
type Resolver interface {
	Resolve(ctx context.Context, platform event.Platform, payload []byte) (AuthContext, error)
}

// DefaultResolver resolves auth from static configuration plus, for GitHub
// Apps, the installation id carried in the payload.
type DefaultResolver struct {
	cfg Config
}

// NewResolver constructs a DefaultResolver.
func NewResolver(cfg Config) *DefaultResolver {
	return &DefaultResolver{cfg: cfg}
}

// Resolve builds an AuthContext for the event.
func (r *DefaultResolver) Resolve(_ context.Context, platform event.Platform, payload []byte) (AuthContext, error) {
	switch platform {
	case event.PlatformGitHub:
		if r.cfg.GitHub.Token != "" {
			return AuthContext{Platform: platform, Token: r.cfg.GitHub.Token}, nil
		}
		if r.cfg.GitHub.AppID == 0 || r.cfg.GitHub.PrivateKeyPath == "" {
			return AuthContext{}, errors.New("github token or app_id with private_key_path is required")
		}
		installationID, ok, err := installationIDFromPayload(payload)
		if err != nil {
			return AuthContext{}, err
		}
		if !ok {
			return AuthContext{}, errors.New("github installation id not found in payload")
		}
		return AuthContext{Platform: platform, InstallationID: installationID}, nil
	case event.PlatformGitLab:
		if r.cfg.GitLab.Token == "" {
			return AuthContext{}, errors.New("gitlab token is required")
		}
		return AuthContext{Platform: platform, Token: r.cfg.GitLab.Token}, nil
	case event.PlatformBitbucket:
		if r.cfg.Bitbucket.Token == "" {
			return AuthContext{}, errors.New("bitbucket token is required")
		}
		return AuthContext{Platform: platform, Token: r.cfg.Bitbucket.Token}, nil
	case event.PlatformAzureRepos:
		if r.cfg.AzureRepos.Token == "" {
			return AuthContext{}, errors.New("azure repos token is required")
		}
		return AuthContext{Platform: platform, Token: r.cfg.AzureRepos.Token}, nil
	default:
		return AuthContext{}, errors.New("unsupported platform for auth resolution")
	}
}

// installationIDFromPayload extracts the GitHub App installation ID.
func installationIDFromPayload(payload []byte) (int64, bool, error) {
	var raw struct {
		Installation struct {
			ID int64 `json:"id"`
		} `json:"installation"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return 0, false, err
	}
	if raw.Installation.ID == 0 {
		return 0, false, nil
	}
	return raw.Installation.ID, true, nil
}
