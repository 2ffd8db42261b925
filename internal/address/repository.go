package address

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// Repository resolves saved addresses for their owners.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, addr *models.Address) error
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

// FindForUser returns the address only when it belongs to userID.
func (r *repository) FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, notFound()
	}

	var addr models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &addr, nil
}

// Create stores a new address for its owner.
func (r *repository) Create(ctx context.Context, addr *models.Address) error {
	if addr == nil || addr.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "address owner required")
	}
	if err := r.db.WithContext(ctx).Create(addr).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return nil
}

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "address not found").
		WithReason(pkgerrors.ReasonAddressNotFound)
}
