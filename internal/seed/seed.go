package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/storefront/internal/auditcontext"
	"github.com/smallbiznis/storefront/internal/config"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	systemActorID   = "system"
	systemActorRole = "system"
)

var Module = fx.Module("seed",
	fx.Invoke(Run),
)

type demoVariant struct {
	SKU   string
	Name  string
	Price string
	Stock int
}

type demoProduct struct {
	Name        string
	Description string
	Variants    []demoVariant
}

var demoCatalog = []demoProduct{
	{
		Name:        "Basic Tee",
		Description: "Cotton crew neck t-shirt.",
		Variants: []demoVariant{
			{SKU: "TEE-BLK-M", Name: "Black / M", Price: "129000", Stock: 50},
			{SKU: "TEE-BLK-L", Name: "Black / L", Price: "129000", Stock: 40},
		},
	},
	{
		Name:        "Canvas Tote",
		Description: "Heavy canvas tote bag.",
		Variants: []demoVariant{
			{SKU: "TOTE-NAT", Name: "Natural", Price: "89000", Stock: 25},
		},
	},
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ProductSvc productdomain.Service
	CouponSvc  coupondomain.Service
}

// Run seeds the demo catalog outside production when SEED_DEMO_CATALOG is set.
func Run(p Params) error {
	if !p.Cfg.SeedDemoCatalog || p.Cfg.IsProduction() {
		return nil
	}
	return EnsureDemoCatalog(context.Background(), p.Log.Named("seed"), p.ProductSvc, p.CouponSvc)
}

// EnsureDemoCatalog creates the sample products and a welcome coupon. Entries
// that already exist are left untouched, so it is safe to run on every start.
func EnsureDemoCatalog(ctx context.Context, log *zap.Logger, products productdomain.Service, coupons coupondomain.Service) error {
	ctx = auditcontext.WithActor(ctx, systemActorID, systemActorRole)

	for _, item := range demoCatalog {
		productID, err := ensureProduct(ctx, products, item)
		if err != nil {
			return err
		}
		for _, v := range item.Variants {
			_, err := products.CreateVariant(ctx, productdomain.CreateVariantRequest{
				ProductID:    productID,
				SKU:          v.SKU,
				Name:         v.Name,
				Price:        decimal.RequireFromString(v.Price),
				InitialStock: v.Stock,
			})
			if err != nil && !errors.Is(err, productdomain.ErrSKUTaken) {
				return err
			}
		}
	}

	minimum := decimal.NewFromInt(100000)
	_, err := coupons.Create(ctx, coupondomain.CreateRequest{
		Code:           "WELCOME10",
		DiscountType:   coupondomain.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: &minimum,
	})
	if err != nil && !errors.Is(err, coupondomain.ErrCouponCodeTaken) {
		return err
	}

	log.Info("demo catalog ensured", zap.Int("products", len(demoCatalog)))
	return nil
}

func ensureProduct(ctx context.Context, products productdomain.Service, item demoProduct) (string, error) {
	existing, err := products.List(ctx, productdomain.ListRequest{Name: item.Name})
	if err != nil {
		return "", err
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, item.Name) {
			return p.ID, nil
		}
	}

	description := item.Description
	created, err := products.Create(ctx, productdomain.CreateRequest{
		Name:        item.Name,
		Description: &description,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}
