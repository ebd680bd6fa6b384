package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"token_vote/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the local history store: receipts, searched tokens, user settings.
// Nothing here is consulted for vote eligibility.
type Storage struct {
	db *gorm.DB
}

var _ domain.HistoryRepository = (*Storage)(nil)

// NewStorage opens the database at path, or at the per-user default location when path is empty.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.VoteReceipt{}, &domain.TrackedToken{}, &domain.AppConfig{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TokenVote", "data", "tokenvote.db"), nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Receipt Operations
// ======================================================================================

// SaveReceipt stores a confirmed vote. Saving the same signature twice overwrites it.
func (s *Storage) SaveReceipt(receipt *domain.VoteReceipt) error {
	return s.db.Save(receipt).Error
}

// GetReceipt retrieves a receipt by signature. A missing receipt is (nil, nil).
func (s *Storage) GetReceipt(signature string) (*domain.VoteReceipt, error) {
	var r domain.VoteReceipt
	err := s.db.First(&r, "signature = ?", signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReceipts returns the newest receipts first. An empty voter lists every voter.
func (s *Storage) ListReceipts(voter string, limit int) ([]domain.VoteReceipt, error) {
	q := s.db.Order("confirmed_at DESC")
	if voter != "" {
		q = q.Where("voter = ?", voter)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var receipts []domain.VoteReceipt
	err := q.Find(&receipts).Error
	return receipts, err
}

// ======================================================================================
// Token Operations
// ======================================================================================

// TouchToken records a search for view.Contract. Symbols from a no-data view do not clear known ones.
func (s *Storage) TouchToken(view *domain.TokenMarketView) error {
	if view == nil || view.Contract == "" {
		return errors.New("touch token: empty contract")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var token domain.TrackedToken
		err := tx.First(&token, "contract = ?", view.Contract).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			token = domain.TrackedToken{Contract: view.Contract}
		}

		if !view.NoData {
			token.BaseSymbol = view.BaseSymbol
			token.QuoteSymbol = view.QuoteSymbol
		}
		token.SearchCount++
		token.LastSearchedAt = time.Now().UTC()
		return tx.Save(&token).Error
	})
}

// SetTokenIcon stores the local icon path of a tracked token.
func (s *Storage) SetTokenIcon(contract, path string) error {
	res := s.db.Model(&domain.TrackedToken{}).Where("contract = ?", contract).Update("icon_path", path)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("token %s is not tracked", contract)
	}
	return nil
}

// GetToken retrieves a tracked token by contract. An untracked contract is (nil, nil).
func (s *Storage) GetToken(contract string) (*domain.TrackedToken, error) {
	var token domain.TrackedToken
	err := s.db.First(&token, "contract = ?", contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ListTokens returns the most recently searched tokens first.
func (s *Storage) ListTokens(limit int) ([]domain.TrackedToken, error) {
	q := s.db.Order("last_searched_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tokens []domain.TrackedToken
	err := q.Find(&tokens).Error
	return tokens, err
}

// DeleteToken stops tracking a contract. Receipts for it are kept.
func (s *Storage) DeleteToken(contract string) error {
	return s.db.Where("contract = ?", contract).Delete(&domain.TrackedToken{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig upserts one session setting (e.g. the last selected contract).
func (s *Storage) SaveConfig(key, value string) error {
	return s.db.Save(&domain.AppConfig{Key: key, Value: value}).Error
}

// LoadConfigMap returns every stored setting.
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var rows []domain.AppConfig
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}
