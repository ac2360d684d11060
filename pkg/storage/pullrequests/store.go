package pullrequests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewhook/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config mirrors the storage configuration for the pull requests table.
type Config struct {
	Driver      string
	DSN         string
	Dialect     string
	Table       string
	AutoMigrate bool
}

// Store implements storage.PullRequestStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	Platform     string     `gorm:"column:platform;size:32;not null"`
	RepoID       string     `gorm:"column:repo_id;size:128;not null"`
	RepoFullName string     `gorm:"column:repo_full_name;size:255"`
	Number       int        `gorm:"column:number;not null"`
	Title        string     `gorm:"column:title;size:512"`
	State        string     `gorm:"column:state;size:32"`
	HeadRef      string     `gorm:"column:head_ref;size:255"`
	BaseRef      string     `gorm:"column:base_ref;size:255"`
	HeadSHA      string     `gorm:"column:head_sha;size:64"`
	AuthorID     string     `gorm:"column:author_id;size:128"`
	CommitSHAs   string     `gorm:"column:commit_shas;type:text"`
	MergedAt     *time.Time `gorm:"column:merged_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Open creates a GORM-backed pull requests store.
func Open(cfg Config) (*Store, error) {
	if cfg.Driver == "" && cfg.Dialect == "" {
		return nil, errors.New("storage driver or dialect is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := normalizeDriver(cfg.Driver)
	if driver == "" {
		driver = normalizeDriver(cfg.Dialect)
	}
	if driver == "" {
		return nil, errors.New("unsupported storage driver")
	}

	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "reviewhook_pull_requests"
	}
	store := &Store{
		db:    gormDB,
		table: table,
	}
	if cfg.AutoMigrate {
		if err := store.migrate(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertPullRequest inserts or updates a pull request snapshot.
func (s *Store) UpsertPullRequest(ctx context.Context, record storage.PullRequestRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.Platform == "" || record.RepoID == "" || record.Number <= 0 {
		return errors.New("platform, repo_id and number are required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data, err := toRow(record)
	if err != nil {
		return err
	}
	return s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "repo_id"}, {Name: "number"}},
			DoUpdates: clause.AssignmentColumns([]string{"repo_full_name", "title", "state", "head_ref", "base_ref", "head_sha", "author_id", "commit_shas", "merged_at", "updated_at"}),
		}).
		Create(&data).Error
}

// GetPullRequest fetches a snapshot by platform, repository and number.
func (s *Store) GetPullRequest(ctx context.Context, platform, repoID string, number int) (*storage.PullRequestRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data row
	err := s.tableDB().
		WithContext(ctx).
		Where("platform = ? AND repo_id = ? AND number = ?", platform, repoID, number).
		Take(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record, err := fromRow(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.PullRequestRecord) (row, error) {
	shas, err := encodeSHAs(record.CommitSHAs)
	if err != nil {
		return row{}, err
	}
	return row{
		Platform:     record.Platform,
		RepoID:       record.RepoID,
		RepoFullName: record.RepoFullName,
		Number:       record.Number,
		Title:        record.Title,
		State:        record.State,
		HeadRef:      record.HeadRef,
		BaseRef:      record.BaseRef,
		HeadSHA:      record.HeadSHA,
		AuthorID:     record.AuthorID,
		CommitSHAs:   shas,
		MergedAt:     record.MergedAt,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}, nil
}

func fromRow(data row) (storage.PullRequestRecord, error) {
	shas, err := decodeSHAs(data.CommitSHAs)
	if err != nil {
		return storage.PullRequestRecord{}, err
	}
	return storage.PullRequestRecord{
		Platform:     data.Platform,
		RepoID:       data.RepoID,
		RepoFullName: data.RepoFullName,
		Number:       data.Number,
		Title:        data.Title,
		State:        data.State,
		HeadRef:      data.HeadRef,
		BaseRef:      data.BaseRef,
		HeadSHA:      data.HeadSHA,
		AuthorID:     data.AuthorID,
		CommitSHAs:   shas,
		MergedAt:     data.MergedAt,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}, nil
}

func encodeSHAs(shas []string) (string, error) {
	if len(shas) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(shas)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeSHAs(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var shas []string
	if err := json.Unmarshal([]byte(value), &shas); err != nil {
		return nil, err
	}
	return shas, nil
}

func normalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
