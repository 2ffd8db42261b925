package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error)
}

// Service exposes the per-user cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

// AddItemInput identifies the variant and quantity to stage.
type AddItemInput struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products product.Repository
	stock    availabilityChecker
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products product.Repository, stock availabilityChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		stock:    stock,
		logg:     logg,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.mutate(ctx, userID, func(context.Context, *gorm.DB, CartRepository, *models.Cart) error {
		return nil
	})
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	input.Size = strings.TrimSpace(input.Size)
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Size == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	return s.mutate(ctx, userID, func(ctx context.Context, tx *gorm.DB, repo CartRepository, cart *models.Cart) error {
		listing, err := s.products.WithTx(tx).FindByID(ctx, input.ProductID)
		if err != nil {
			return err
		}
		variant, ok := findSize(listing, input.Size)
		if !ok {
			return inventory.SizeNotFound(listing.ID, input.Size)
		}

		existing := findItem(cart.Items, input.ProductID, input.Size)
		want := input.Quantity
		if existing != nil {
			want += existing.Quantity
		}
		if err := s.ensureAvailable(ctx, tx, variant, want); err != nil {
			return err
		}

		if existing != nil {
			return repo.UpdateItemQuantity(ctx, existing.ID, want)
		}
		return repo.CreateItem(ctx, &models.CartItem{
			CartID:          cart.ID,
			ProductID:       listing.ID,
			Size:            variant.Size,
			Quantity:        input.Quantity,
			Price:           listing.Price,
			DiscountedPrice: product.DiscountedPrice(listing.Price, listing.DiscountPercent),
			DiscountPercent: listing.DiscountPercent,
		})
	})
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	return s.mutate(ctx, userID, func(ctx context.Context, tx *gorm.DB, repo CartRepository, cart *models.Cart) error {
		item := findItemByID(cart.Items, itemID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		listing, err := s.products.WithTx(tx).FindByID(ctx, item.ProductID)
		if err != nil {
			return err
		}
		variant, ok := findSize(listing, item.Size)
		if !ok {
			return inventory.SizeNotFound(item.ProductID, item.Size)
		}
		if err := s.ensureAvailable(ctx, tx, variant, qty); err != nil {
			return err
		}
		return repo.UpdateItemQuantity(ctx, item.ID, qty)
	})
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.mutate(ctx, userID, func(ctx context.Context, _ *gorm.DB, repo CartRepository, cart *models.Cart) error {
		removed, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return err
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.mutate(ctx, userID, func(ctx context.Context, _ *gorm.DB, repo CartRepository, cart *models.Cart) error {
		return repo.DeleteItems(ctx, cart.ID)
	})
}

type mutation func(ctx context.Context, tx *gorm.DB, repo CartRepository, cart *models.Cart) error

// mutate locks (or lazily creates) the cart, applies fn and recomputes totals from the stored items.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn mutation) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := lockOrCreate(ctx, repo, userID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, repo, cart); err != nil {
			return err
		}

		items, err := repo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		totals := ComputeTotals(items)
		if err := repo.UpdateTotals(ctx, cart.ID, totals); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart totals")
		}
		cart.Items = items
		applyTotals(cart, totals)
		result = cart
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
		}
		return nil, err
	}
	return result, nil
}

func lockOrCreate(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserForUpdate(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if _, err := repo.Create(ctx, &models.Cart{UserID: userID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	cart, err = repo.FindByUserForUpdate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) ensureAvailable(ctx context.Context, tx *gorm.DB, variant models.InventorySize, qty int) error {
	ok, err := s.stock.CheckAvailability(ctx, tx, variant.ProductID, variant.Size, qty)
	if err != nil {
		return err
	}
	if !ok {
		return inventory.InsufficientStock(variant.ProductID, variant.Size, qty, variant.Quantity)
	}
	return nil
}

func findSize(listing *models.Product, size string) (models.InventorySize, bool) {
	for _, variant := range listing.Sizes {
		if variant.Size == size {
			return variant, true
		}
	}
	return models.InventorySize{}, false
}

func findItem(items []models.CartItem, productID uuid.UUID, size string) *models.CartItem {
	for i := range items {
		if items[i].ProductID == productID && items[i].Size == size {
			return &items[i]
		}
	}
	return nil
}

func findItemByID(items []models.CartItem, itemID uuid.UUID) *models.CartItem {
	for i := range items {
		if items[i].ID == itemID {
			return &items[i]
		}
	}
	return nil
}
