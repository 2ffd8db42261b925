package vnpay

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository persists gateway payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, detail *models.PaymentDetail) error
	FindByTransactionIDForUpdate(ctx context.Context, transactionID string) (*models.PaymentDetail, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentDetail, error)
	Save(ctx context.Context, detail *models.PaymentDetail) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, detail *models.PaymentDetail) error {
	return r.db.WithContext(ctx).Create(detail).Error
}

func (r *repository) FindByTransactionIDForUpdate(ctx context.Context, transactionID string) (*models.PaymentDetail, error) {
	var detail models.PaymentDetail
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", transactionID).
		First(&detail).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentDetail, error) {
	var rows []models.PaymentDetail
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, detail *models.PaymentDetail) error {
	return r.db.WithContext(ctx).Save(detail).Error
}
