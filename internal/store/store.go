package store

import (
	"errors"
	"fmt"

	"paper-trading-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store is the sqlite-backed repository for trades, the account state row
// and user-scoped exchange configurations.
type Store struct {
	db *gorm.DB
}

// NewStore opens the database and performs auto-migration.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.TradeRecord{}, &models.AccountState{}, &models.ExchangeConfig{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// AppendTrade persists one executed trade.
func (s *Store) AppendTrade(item models.TradeHistoryItem) error {
	record := models.TradeRecord{
		Symbol:       item.Symbol,
		Side:         item.Side,
		Quantity:     item.Quantity,
		Price:        item.Price,
		Value:        item.Value,
		BalanceAfter: item.BalanceAfter,
		Type:         item.Type,
		Confidence:   item.Confidence,
		Timestamp:    item.Timestamp,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save trade record: %w", err)
	}
	return nil
}

// ListTrades returns the full trade history ordered oldest first.
func (s *Store) ListTrades() ([]models.TradeHistoryItem, error) {
	var records []models.TradeRecord
	if err := s.db.Order("timestamp asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	items := make([]models.TradeHistoryItem, len(records))
	for i, r := range records {
		items[i] = r.Item()
	}
	return items, nil
}

// ClearTrades removes all trade records; used by the reset command.
func (s *Store) ClearTrades() error {
	if err := s.db.Where("1 = 1").Delete(&models.TradeRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear trades: %w", err)
	}
	return nil
}

// LoadState returns the single account-state row, or nil when the account
// has never been saved.
func (s *Store) LoadState() (*models.AccountState, error) {
	var state models.AccountState
	err := s.db.First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account state: %w", err)
	}
	return &state, nil
}

// SaveState upserts the single account-state row.
func (s *Store) SaveState(state *models.AccountState) error {
	if err := s.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to save account state: %w", err)
	}
	return nil
}

// CreateExchangeConfig inserts a user-scoped exchange configuration.
func (s *Store) CreateExchangeConfig(cfg *models.ExchangeConfig) error {
	if err := s.db.Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create exchange config: %w", err)
	}
	return nil
}

// ListExchangeConfigs returns all configurations owned by the user.
func (s *Store) ListExchangeConfigs(userID string) ([]models.ExchangeConfig, error) {
	var configs []models.ExchangeConfig
	if err := s.db.Where("user_id = ?", userID).Order("id asc").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to list exchange configs: %w", err)
	}
	return configs, nil
}

// UpdateExchangeConfig saves changes to a configuration owned by the user.
// Ownership is part of the predicate so a user cannot touch another user's
// rows.
func (s *Store) UpdateExchangeConfig(userID string, id uint, updates map[string]any) error {
	result := s.db.Model(&models.ExchangeConfig{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update exchange config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteExchangeConfig removes a configuration owned by the user.
func (s *Store) DeleteExchangeConfig(userID string, id uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.ExchangeConfig{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete exchange config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
