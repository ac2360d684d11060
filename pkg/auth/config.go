package auth

// Config contains API credentials for each source-control platform.
type Config struct {
	GitHub     GitHubConfig   `yaml:"github"`
	GitLab     ProviderConfig `yaml:"gitlab"`
	Bitbucket  ProviderConfig `yaml:"bitbucket"`
	AzureRepos AzureConfig    `yaml:"azure_repos"`
}

// GitHubConfig supports both App (installation token) and PAT auth.
type GitHubConfig struct {
	AppID          int64  `yaml:"app_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	Token          string `yaml:"token"`
	BaseURL        string `yaml:"base_url"`
}

// ProviderConfig is token auth for platforms without an app model.
type ProviderConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig is PAT auth scoped to one Azure DevOps organization.
type AzureConfig struct {
	Organization string `yaml:"organization"`
	Token        string `yaml:"token"`
	BaseURL      string `yaml:"base_url"`
}
