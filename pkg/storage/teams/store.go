package teams

import (
	"context"
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

// Config mirrors the storage configuration for the teams table.
type Config struct {
	Driver      string
	DSN         string
	Dialect     string
	Table       string
	AutoMigrate bool
}

// Store implements storage.TeamStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	Platform       string    `gorm:"column:platform;size:32;not null"`
	Organization   string    `gorm:"column:organization;size:255;not null"`
	Team           string    `gorm:"column:team;size:255;not null"`
	RepoID         string    `gorm:"column:repo_id;size:128;not null"`
	RepoFullName   string    `gorm:"column:repo_full_name;size:255"`
	BranchPatterns string    `gorm:"column:branch_patterns;type:text"`
	MentionToken   string    `gorm:"column:mention_token;size:64"`
	ReviewTopic    string    `gorm:"column:review_topic;size:255"`
	Enabled        bool      `gorm:"column:enabled"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Open creates a GORM-backed teams store.
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
		table = "reviewhook_teams"
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

// UpsertTeam inserts or updates a team binding.
func (s *Store) UpsertTeam(ctx context.Context, record storage.TeamRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.Platform == "" || record.Organization == "" || record.Team == "" || record.RepoID == "" {
		return errors.New("platform, organization, team and repo_id are required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data := toRow(record)
	return s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "organization"}, {Name: "team"}, {Name: "repo_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"repo_full_name", "branch_patterns", "mention_token", "review_topic", "enabled", "updated_at"}),
		}).
		Create(&data).Error
}

// FindTeamsForRepository returns the enabled teams bound to a repository.
func (s *Store) FindTeamsForRepository(ctx context.Context, platform, repoID string) ([]storage.TeamRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data []row
	err := s.tableDB().
		WithContext(ctx).
		Where("platform = ? AND repo_id = ? AND enabled = ?", platform, repoID, true).
		Find(&data).Error
	if err != nil {
		return nil, err
	}
	records := make([]storage.TeamRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

// ListTeams lists team bindings by filter.
func (s *Store) ListTeams(ctx context.Context, filter storage.TeamFilter) ([]storage.TeamRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	query := s.tableDB().WithContext(ctx)
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.Organization != "" {
		query = query.Where("organization = ?", filter.Organization)
	}
	if filter.Team != "" {
		query = query.Where("team = ?", filter.Team)
	}
	if filter.RepoID != "" {
		query = query.Where("repo_id = ?", filter.RepoID)
	}
	if filter.RepoFullName != "" {
		query = query.Where("repo_full_name = ?", filter.RepoFullName)
	}
	var data []row
	err := query.Find(&data).Error
	if err != nil {
		return nil, err
	}
	records := make([]storage.TeamRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.TeamRecord) row {
	return row{
		Platform:       record.Platform,
		Organization:   record.Organization,
		Team:           record.Team,
		RepoID:         record.RepoID,
		RepoFullName:   record.RepoFullName,
		BranchPatterns: encodePatterns(record.BranchPatterns),
		MentionToken:   record.MentionToken,
		ReviewTopic:    record.ReviewTopic,
		Enabled:        record.Enabled,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func fromRow(data row) storage.TeamRecord {
	return storage.TeamRecord{
		Platform:       data.Platform,
		Organization:   data.Organization,
		Team:           data.Team,
		RepoID:         data.RepoID,
		RepoFullName:   data.RepoFullName,
		BranchPatterns: decodePatterns(data.BranchPatterns),
		MentionToken:   data.MentionToken,
		ReviewTopic:    data.ReviewTopic,
		Enabled:        data.Enabled,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

// encodePatterns stores patterns newline separated. Branch names cannot
// contain newlines, so no escaping is needed.
func encodePatterns(patterns []string) string {
	cleaned := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern != "" {
			cleaned = append(cleaned, pattern)
		}
	}
	return strings.Join(cleaned, "\n")
}

func decodePatterns(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, "\n")
	patterns := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			patterns = append(patterns, part)
		}
	}
	return patterns
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
