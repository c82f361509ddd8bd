package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nanoexch/orderbook"
)

// TradeLeg is one persisted execution leg: what a single order traded, at its
// own limit price, against a counter order. Price and quantity are stored as
// canonical decimal strings.
type TradeLeg struct {
	ID             uint   `gorm:"primaryKey"`
	TradeID        uint64 `gorm:"index"`
	Instrument     string
	OrderID        string `gorm:"index"`
	CounterOrderID string
	Side           string
	Price          string
	Quantity       string
	CreatedAt      time.Time
}

// Store persists trade legs to a SQLite database.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path, creating directories and the
// schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open trade store: %w", err)
	}

	if err := db.AutoMigrate(&TradeLeg{}); err != nil {
		return nil, fmt.Errorf("failed to migrate trade store: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveLegs writes the legs in one batch.
func (s *Store) SaveLegs(legs []TradeLeg) error {
	if len(legs) == 0 {
		return nil
	}
	return s.db.Create(&legs).Error
}

// ListByOrder returns every persisted leg belonging to the order, oldest
// first.
func (s *Store) ListByOrder(orderID string) ([]TradeLeg, error) {
	var legs []TradeLeg
	err := s.db.Where("order_id = ?", orderID).Order("id asc").Find(&legs).Error
	return legs, err
}

// Count returns the number of persisted legs.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&TradeLeg{}).Count(&n).Error
	return n, err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Recorder adapts a Store to the book's PublishLog interface, persisting
// match events and ignoring the rest. Rows are built before Publish returns,
// as the book recycles its log objects afterwards.
type Recorder struct {
	store *Store
}

// NewRecorder creates a Recorder on top of the store.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s}
}

// Publish persists the match legs among the logs synchronously.
func (r *Recorder) Publish(logs ...*book.BookLog) {
	legs := make([]TradeLeg, 0, len(logs))
	for _, log := range logs {
		if log.Type != book.LogTypeMatch {
			continue
		}
		legs = append(legs, TradeLeg{
			TradeID:        log.TradeID,
			Instrument:     log.Instrument,
			OrderID:        log.OrderID,
			CounterOrderID: log.CounterOrderID,
			Side:           log.Side.String(),
			Price:          log.Price.String(),
			Quantity:       log.Size.String(),
			CreatedAt:      log.CreatedAt,
		})
	}
	if err := r.store.SaveLegs(legs); err != nil {
		slog.Error("failed to persist trade legs", "error", err)
	}
}
