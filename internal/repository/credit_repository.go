package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/credit"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// CreditBatchModel is the GORM model for the credit_batches table.
type CreditBatchModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	ServiceType    string     `gorm:"type:varchar(20);not null"`
	Amount         int64      `gorm:"not null"`
	Remaining      int64      `gorm:"not null;check:remaining >= 0"`
	ExpiresAt      *time.Time `gorm:"type:timestamptz"`
	Source         string     `gorm:"type:varchar(20);not null"`
	SubscriptionID *uuid.UUID `gorm:"type:uuid"`
	Version        int64      `gorm:"not null;default:1"`
	CreatedAt      time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt      time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CreditBatchModel) TableName() string { return "credit_batches" }

// CreditTransactionModel is the GORM model for the append-only credit journal.
type CreditTransactionModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	BatchID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	BookingID *uuid.UUID `gorm:"type:uuid;index"`
	Kind      string     `gorm:"type:varchar(20);not null"`
	Amount    int64      `gorm:"not null"`
	Reason    string     `gorm:"type:text"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CreditTransactionModel) TableName() string { return "credit_transactions" }

// GormLedgerRepository implements LedgerRepository using GORM.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository.
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Grant stores a batch and its journal row.
func (r *GormLedgerRepository) Grant(ctx context.Context, b *credit.Batch, tx *credit.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return grant(db, b, tx)
	})
}

func grant(db *gorm.DB, b *credit.Batch, tx *credit.Transaction) error {
	if err := db.Create(toBatchModel(b)).Error; err != nil {
		return err
	}
	return db.Create(toTransactionModel(tx)).Error
}

// FindBatches returns a client's batches, optionally for one service type.
func (r *GormLedgerRepository) FindBatches(ctx context.Context, clientID uuid.UUID, serviceType *catalog.ServiceType) ([]*credit.Batch, error) {
	q := r.db.WithContext(ctx).Where("client_id = ?", clientID)
	if serviceType != nil {
		q = q.Where("service_type = ?", string(*serviceType))
	}
	var models []CreditBatchModel
	if err := q.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*credit.Batch, len(models))
	for i, m := range models {
		out[i] = credit.ReconstructBatch(m.ID, m.ClientID, catalog.ServiceType(m.ServiceType),
			m.Amount, m.Remaining, m.ExpiresAt, credit.Source(m.Source), m.SubscriptionID,
			m.Version, m.CreatedAt, m.UpdatedAt)
	}
	return out, nil
}

// ApplyAllocations deducts every allocation in one transaction. Each update is
// guarded by the remaining amount the plan was computed from, so a concurrent
// debit rolls the whole plan back.
func (r *GormLedgerRepository) ApplyAllocations(ctx context.Context, allocs []credit.Allocation, txs []*credit.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		now := time.Now().UTC()
		for _, a := range allocs {
			res := db.Model(&CreditBatchModel{}).
				Where("id = ? AND remaining = ? AND remaining >= ?", a.BatchID, a.Expected, a.Amount).
				Updates(map[string]interface{}{
					"remaining":  gorm.Expr("remaining - ?", a.Amount),
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.NewConflictError("credit balance changed concurrently")
			}
		}
		for _, tx := range txs {
			if err := db.Create(toTransactionModel(tx)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListTransactions returns a client's journal, newest first.
func (r *GormLedgerRepository) ListTransactions(ctx context.Context, clientID uuid.UUID, page, limit int) ([]*credit.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&CreditTransactionModel{}).Where("client_id = ?", clientID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []CreditTransactionModel
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*credit.Transaction, len(models))
	for i, m := range models {
		out[i] = &credit.Transaction{
			ID: m.ID, ClientID: m.ClientID, BatchID: m.BatchID, BookingID: m.BookingID,
			Kind: credit.TransactionKind(m.Kind), Amount: m.Amount, Reason: m.Reason, CreatedAt: m.CreatedAt,
		}
	}
	return out, total, nil
}

func toBatchModel(b *credit.Batch) *CreditBatchModel {
	return &CreditBatchModel{
		ID:             b.ID(),
		ClientID:       b.ClientID(),
		ServiceType:    string(b.ServiceType()),
		Amount:         b.Amount(),
		Remaining:      b.Remaining(),
		ExpiresAt:      b.ExpiresAt(),
		Source:         string(b.Source()),
		SubscriptionID: b.SubscriptionID(),
		Version:        b.Version(),
		CreatedAt:      b.CreatedAt(),
		UpdatedAt:      b.UpdatedAt(),
	}
}

func toTransactionModel(tx *credit.Transaction) *CreditTransactionModel {
	return &CreditTransactionModel{
		ID:        tx.ID,
		ClientID:  tx.ClientID,
		BatchID:   tx.BatchID,
		BookingID: tx.BookingID,
		Kind:      string(tx.Kind),
		Amount:    tx.Amount,
		Reason:    tx.Reason,
		CreatedAt: tx.CreatedAt,
	}
}
