// Package storage persists attack sessions and captured material in SQLite.
package storage

import (
	"encoding/json"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// SQLiteAdapter implements ports.SessionStore using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// SessionModel is the GORM model for attack sessions.
type SessionModel struct {
	ID            string `gorm:"primaryKey"`
	Kind          string
	TargetBSSID   string `gorm:"index"`
	TargetESSID   string
	Channel       int
	Primary       string
	PrimaryRole   string
	Secondary     string
	SecondaryRole string
	Backend       string
	Clients       string // JSON encoded []string
	DeauthBursts  int
	Outcome       string
	ErrorMessage  string
	StartTime     time.Time
	EndTime       *time.Time
}

// HandshakeModel stores captured handshakes, one per BSSID.
type HandshakeModel struct {
	ID         string `gorm:"primaryKey"`
	BSSID      string `gorm:"column:bssid;uniqueIndex"`
	ESSID      string
	FilePath   string
	Backend    string
	CapturedAt time.Time
}

// CredentialModel stores portal-captured credentials.
type CredentialModel struct {
	ID         string `gorm:"primaryKey"`
	BSSID      string `gorm:"index"`
	ESSID      string
	Passphrase string
	ClientIP   string
	Validated  bool
	CapturedAt time.Time
}

// NewSQLiteAdapter opens the database and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&SessionModel{}, &HandshakeModel{}, &CredentialModel{}); err != nil {
		return nil, err
	}
	return &SQLiteAdapter{db: db}, nil
}

// SaveSession upserts a session record.
func (s *SQLiteAdapter) SaveSession(session domain.AttackSession) error {
	clients, _ := json.Marshal(session.Clients)
	model := SessionModel{
		ID:            session.ID,
		Kind:          string(session.Kind),
		TargetBSSID:   session.TargetBSSID,
		TargetESSID:   session.TargetESSID,
		Channel:       session.Channel,
		Primary:       session.Assignment.Primary,
		PrimaryRole:   session.Assignment.PrimaryRole,
		Secondary:     session.Assignment.Secondary,
		SecondaryRole: session.Assignment.SecondaryRole,
		Backend:       string(session.Backend),
		Clients:       string(clients),
		DeauthBursts:  session.DeauthBursts,
		Outcome:       string(session.Outcome),
		ErrorMessage:  session.ErrorMessage,
		StartTime:     session.StartTime,
		EndTime:       session.EndTime,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

// SaveHandshake upserts the handshake for a BSSID. A newer capture for the
// same target replaces the old record.
func (s *SQLiteAdapter) SaveHandshake(h domain.CapturedHandshake) error {
	model := HandshakeModel{
		ID:         h.ID,
		BSSID:      h.BSSID,
		ESSID:      h.ESSID,
		FilePath:   h.FilePath,
		Backend:    string(h.Backend),
		CapturedAt: h.CapturedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bssid"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *SQLiteAdapter) SaveCredential(c domain.CapturedCredential) error {
	model := CredentialModel{
		ID:         c.ID,
		BSSID:      c.BSSID,
		ESSID:      c.ESSID,
		Passphrase: c.Passphrase,
		ClientIP:   c.ClientIP,
		Validated:  c.Validated,
		CapturedAt: c.CapturedAt,
	}
	return s.db.Create(&model).Error
}

// FindHandshake returns the stored handshake for a target, if any.
func (s *SQLiteAdapter) FindHandshake(bssid string) (domain.CapturedHandshake, bool, error) {
	var model HandshakeModel
	err := s.db.Where("bssid = ?", bssid).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return domain.CapturedHandshake{}, false, nil
	}
	if err != nil {
		return domain.CapturedHandshake{}, false, err
	}
	return domain.CapturedHandshake{
		ID:         model.ID,
		BSSID:      model.BSSID,
		ESSID:      model.ESSID,
		FilePath:   model.FilePath,
		Backend:    domain.BackendKind(model.Backend),
		CapturedAt: model.CapturedAt,
	}, true, nil
}

// ListSessions returns all sessions, newest first.
func (s *SQLiteAdapter) ListSessions() ([]domain.AttackSession, error) {
	var models []SessionModel
	if err := s.db.Order("start_time DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	sessions := make([]domain.AttackSession, 0, len(models))
	for _, m := range models {
		var clients []string
		if m.Clients != "" {
			json.Unmarshal([]byte(m.Clients), &clients)
		}
		sessions = append(sessions, domain.AttackSession{
			ID:          m.ID,
			Kind:        domain.AttackKind(m.Kind),
			TargetBSSID: m.TargetBSSID,
			TargetESSID: m.TargetESSID,
			Channel:     m.Channel,
			Assignment: domain.RoleAssignment{
				Kind:          domain.AttackKind(m.Kind),
				Primary:       m.Primary,
				PrimaryRole:   m.PrimaryRole,
				Secondary:     m.Secondary,
				SecondaryRole: m.SecondaryRole,
			},
			Backend:      domain.BackendKind(m.Backend),
			Clients:      clients,
			DeauthBursts: m.DeauthBursts,
			Outcome:      domain.SessionOutcome(m.Outcome),
			ErrorMessage: m.ErrorMessage,
			StartTime:    m.StartTime,
			EndTime:      m.EndTime,
		})
	}
	return sessions, nil
}

// ListCredentials returns all captured credentials, newest first.
func (s *SQLiteAdapter) ListCredentials() ([]domain.CapturedCredential, error) {
	var models []CredentialModel
	if err := s.db.Order("captured_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	creds := make([]domain.CapturedCredential, 0, len(models))
	for _, m := range models {
		creds = append(creds, domain.CapturedCredential{
			ID:         m.ID,
			BSSID:      m.BSSID,
			ESSID:      m.ESSID,
			Passphrase: m.Passphrase,
			ClientIP:   m.ClientIP,
			Validated:  m.Validated,
			CapturedAt: m.CapturedAt,
		})
	}
	return creds, nil
}

// ListHandshakes returns all stored handshakes.
func (s *SQLiteAdapter) ListHandshakes() ([]domain.CapturedHandshake, error) {
	var models []HandshakeModel
	if err := s.db.Order("captured_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	handshakes := make([]domain.CapturedHandshake, 0, len(models))
	for _, m := range models {
		handshakes = append(handshakes, domain.CapturedHandshake{
			ID:         m.ID,
			BSSID:      m.BSSID,
			ESSID:      m.ESSID,
			FilePath:   m.FilePath,
			Backend:    domain.BackendKind(m.Backend),
			CapturedAt: m.CapturedAt,
		})
	}
	return handshakes, nil
}

// Close closes the underlying database handle.
func (s *SQLiteAdapter) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
