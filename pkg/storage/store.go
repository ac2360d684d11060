package storage

import (
	"context"
	"time"
)

// TeamRecord binds one onboarded organization team to a repository and
// carries the team's review settings.
type TeamRecord struct {
	Platform       string
	Organization   string
	Team           string
	RepoID         string
	RepoFullName   string
	BranchPatterns []string
	MentionToken   string
	ReviewTopic    string
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PullRequestRecord is the persisted snapshot of a pull request the
// service has seen, including the commit SHAs already processed. The
// commit list lets comment-driven updates skip deliveries whose commits
// are unchanged.
type PullRequestRecord struct {
	Platform     string
	RepoID       string
	RepoFullName string
	Number       int
	Title        string
	State        string
	HeadRef      string
	BaseRef      string
	HeadSHA      string
	AuthorID     string
	CommitSHAs   []string
	MergedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TeamFilter selects team rows.
type TeamFilter struct {
	Platform     string
	Organization string
	Team         string
	RepoID       string
	RepoFullName string
}

// TeamStore defines persistence for team onboarding records.
type TeamStore interface {
	UpsertTeam(ctx context.Context, record TeamRecord) error
	FindTeamsForRepository(ctx context.Context, platform, repoID string) ([]TeamRecord, error)
	ListTeams(ctx context.Context, filter TeamFilter) ([]TeamRecord, error)
	Close() error
}

// PullRequestStore defines persistence for pull request snapshots.
type PullRequestStore interface {
	UpsertPullRequest(ctx context.Context, record PullRequestRecord) error
	GetPullRequest(ctx context.Context, platform, repoID string, number int) (*PullRequestRecord, error)
	Close() error
}
