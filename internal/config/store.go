package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// StoreSettings is the merchant-facing configuration read from store.yml.
type StoreSettings struct {
	Name                  string           `mapstructure:"name"`
	Address               string           `mapstructure:"address"`
	Email                 string           `mapstructure:"email"`
	Phone                 string           `mapstructure:"phone"`
	Currency              string           `mapstructure:"currency"`
	InvoiceNumberTemplate string           `mapstructure:"invoiceNumberTemplate"`
	Tax                   TaxSettings      `mapstructure:"tax"`
	ShippingOptions       []ShippingOption `mapstructure:"shippingOptions"`
}

type TaxSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Percentage string `mapstructure:"percentage"`
	Label      string `mapstructure:"label"`
}

// ShippingOption is a named courier service with a flat fee.
type ShippingOption struct {
	Code          string `mapstructure:"code"`
	Courier       string `mapstructure:"courier"`
	Service       string `mapstructure:"service"`
	Fee           string `mapstructure:"fee"`
	EstimatedDays int    `mapstructure:"estimatedDays"`
}

func (t TaxSettings) Rate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(t.Percentage))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (o ShippingOption) FeeAmount() decimal.Decimal {
	fee, err := decimal.NewFromString(strings.TrimSpace(o.Fee))
	if err != nil {
		return decimal.Zero
	}
	return fee
}

// ShippingOption looks up a configured option by code, case-insensitively.
func (s StoreSettings) ShippingOption(code string) (ShippingOption, bool) {
	code = strings.TrimSpace(code)
	for _, opt := range s.ShippingOptions {
		if strings.EqualFold(opt.Code, code) {
			return opt, true
		}
	}
	return ShippingOption{}, false
}

func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		Name:                  "Storefront",
		Currency:              "IDR",
		InvoiceNumberTemplate: "INV-{YYYY}{MM}{DD}-{SEQ4}",
		Tax: TaxSettings{
			Enabled:    true,
			Percentage: "11",
			Label:      "VAT",
		},
		ShippingOptions: []ShippingOption{
			{Code: "jne-reg", Courier: "JNE", Service: "REG", Fee: "15000", EstimatedDays: 3},
			{Code: "jne-yes", Courier: "JNE", Service: "YES", Fee: "30000", EstimatedDays: 1},
			{Code: "sicepat-reg", Courier: "SiCepat", Service: "REG", Fee: "12000", EstimatedDays: 3},
			{Code: "pickup", Courier: "Store", Service: "Pickup", Fee: "0", EstimatedDays: 0},
		},
	}
}

type StoreConfigHolder struct {
	current atomic.Value // holds StoreSettings
}

// NewStaticStoreConfigHolder wraps fixed settings without any file watching.
func NewStaticStoreConfigHolder(settings StoreSettings) *StoreConfigHolder {
	holder := &StoreConfigHolder{}
	holder.current.Store(settings)
	return holder
}

func NewStoreConfigHolder(cfg Config) (*StoreConfigHolder, error) {
	v := viper.New()

	if cfg.StoreConfigPath != "" {
		v.SetConfigFile(cfg.StoreConfigPath)
	} else {
		v.SetConfigName("store")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/storefront")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultStoreSettings()
	v.SetDefault("store.name", defaults.Name)
	v.SetDefault("store.currency", defaults.Currency)
	v.SetDefault("store.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)
	v.SetDefault("store.tax.enabled", defaults.Tax.Enabled)
	v.SetDefault("store.tax.percentage", defaults.Tax.Percentage)
	v.SetDefault("store.tax.label", defaults.Tax.Label)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
		v.SetDefault("store.shippingOptions", defaults.ShippingOptions)
	}

	var settings StoreSettings
	if err := v.UnmarshalKey("store", &settings); err != nil {
		return nil, err
	}
	if err := ValidateStoreSettings(settings); err != nil {
		return nil, err
	}

	holder := NewStaticStoreConfigHolder(settings)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated StoreSettings
			if err := v.UnmarshalKey("store", &updated); err != nil {
				log.Printf("[store-config] reload failed: %v", err)
				return
			}
			if err := ValidateStoreSettings(updated); err != nil {
				log.Printf("[store-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[store-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *StoreConfigHolder) Get() StoreSettings {
	return h.current.Load().(StoreSettings)
}

func ValidateStoreSettings(s StoreSettings) error {
	if len(s.ShippingOptions) == 0 {
		return errors.New("store.shippingOptions cannot be empty")
	}
	seen := make(map[string]struct{}, len(s.ShippingOptions))
	for _, opt := range s.ShippingOptions {
		code := strings.ToLower(strings.TrimSpace(opt.Code))
		if code == "" {
			return errors.New("store.shippingOptions: code is required")
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("store.shippingOptions: duplicate code %q", opt.Code)
		}
		seen[code] = struct{}{}
		fee, err := decimal.NewFromString(strings.TrimSpace(opt.Fee))
		if err != nil || fee.IsNegative() {
			return fmt.Errorf("store.shippingOptions[%s]: invalid fee %q", opt.Code, opt.Fee)
		}
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(s.Tax.Percentage))
	if err != nil {
		return fmt.Errorf("store.tax.percentage: invalid value %q", s.Tax.Percentage)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("store.tax.percentage must be between 0 and 100")
	}
	return nil
}
