package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"panaudit/internal/model"
)

// ErrSessionNotFound is returned for lookups of unknown audit sessions.
var ErrSessionNotFound = errors.New("audit session not found")

// Store persists audit sessions and their parsed rule/object snapshots.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path, creating the directory and
// schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite only supports 1 writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&AuditSession{}, &FirewallRule{}, &ObjectDefinition{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSession records a new audit session with its parse metadata.
func (s *Store) CreateSession(name, filename, fileHash string, meta model.Metadata) (*AuditSession, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	session := &AuditSession{
		SessionName: name,
		Filename:    filename,
		FileHash:    fileHash,
		StartTime:   time.Now().UTC(),
		Metadata:    string(metaJSON),
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// FinishSession stamps the session's end time.
func (s *Store) FinishSession(id uint) error {
	now := time.Now().UTC()
	return s.db.Model(&AuditSession{}).Where("id = ?", id).Update("end_time", &now).Error
}

// SaveRules stores the parsed rules for a session and returns the count.
func (s *Store) SaveRules(auditID uint, rules []model.Rule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	records := make([]FirewallRule, 0, len(rules))
	for _, r := range rules {
		records = append(records, ruleRecord(auditID, r))
	}
	if err := s.db.Create(&records).Error; err != nil {
		return 0, err
	}
	return len(records), nil
}

// SaveObjects stores the parsed objects for a session and returns the count.
func (s *Store) SaveObjects(auditID uint, objects []model.Object) (int, error) {
	if len(objects) == 0 {
		return 0, nil
	}
	records := make([]ObjectDefinition, 0, len(objects))
	for _, o := range objects {
		records = append(records, objectRecord(auditID, o))
	}
	if err := s.db.Create(&records).Error; err != nil {
		return 0, err
	}
	return len(records), nil
}

// ListSessions returns all audit sessions, newest first.
func (s *Store) ListSessions() ([]AuditSession, error) {
	var sessions []AuditSession
	if err := s.db.Order("id DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns one audit session by id.
func (s *Store) GetSession(id uint) (*AuditSession, error) {
	var session AuditSession
	err := s.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CountForSession returns the stored rule and object counts for a session.
func (s *Store) CountForSession(id uint) (int64, int64, error) {
	var ruleCount, objectCount int64
	if err := s.db.Model(&FirewallRule{}).Where("audit_id = ?", id).Count(&ruleCount).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.Model(&ObjectDefinition{}).Where("audit_id = ?", id).Count(&objectCount).Error; err != nil {
		return 0, 0, err
	}
	return ruleCount, objectCount, nil
}

// Snapshot loads the rule/object snapshot for a session, rules in position
// order, shaped for the analyzers.
func (s *Store) Snapshot(id uint) ([]model.Rule, []model.Object, error) {
	if _, err := s.GetSession(id); err != nil {
		return nil, nil, err
	}

	var ruleRecords []FirewallRule
	if err := s.db.Where("audit_id = ?", id).Order("position ASC").Find(&ruleRecords).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	var objectRecords []ObjectDefinition
	if err := s.db.Where("audit_id = ?", id).Find(&objectRecords).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load objects: %w", err)
	}

	rules := make([]model.Rule, 0, len(ruleRecords))
	for _, rec := range ruleRecords {
		rules = append(rules, rec.ToModel())
	}
	objects := make([]model.Object, 0, len(objectRecords))
	for _, rec := range objectRecords {
		objects = append(objects, rec.ToModel())
	}
	return rules, objects, nil
}
