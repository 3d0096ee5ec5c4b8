package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig carries the tunables of the monthly provider billing run.
type BillingConfig struct {
	DefaultCommissionRate float64       `mapstructure:"defaultCommissionRate" validate:"gte=0,lte=1"`
	VATRate               float64       `mapstructure:"vatRate" validate:"gte=0,lte=1"`
	TransferGraceDays     int           `mapstructure:"transferGraceDays" validate:"gte=0,lte=60"`
	InvoiceDueDays        int           `mapstructure:"invoiceDueDays" validate:"gte=1,lte=120"`
	BillingDay            int           `mapstructure:"billingDay" validate:"gte=1,lte=28"`
	Concurrency           int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	ProviderTimeout       time.Duration `mapstructure:"providerTimeout" validate:"gt=0"`
	Currency              string        `mapstructure:"currency" validate:"len=3"`
	NotifyAdmins          bool          `mapstructure:"notifyAdmins"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DefaultCommissionRate: 0.15,
		VATRate:               0.20,
		TransferGraceDays:     7,
		InvoiceDueDays:        30,
		BillingDay:            25,
		Concurrency:           4,
		ProviderTimeout:       30 * time.Second,
		Currency:              "EUR",
		NotifyAdmins:          true,
	}
}

func (c BillingConfig) CommissionRate() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultCommissionRate)
}

func (c BillingConfig) VAT() decimal.Decimal {
	return decimal.NewFromFloat(c.VATRate)
}

var billingValidator = validator.New()

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder reads billing.yml and keeps it hot-reloaded.
// A missing file falls back to the defaults.
func NewBillingConfigHolder(cfg Config, log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("config.billing")
	v := viper.New()

	if cfg.BillingConfigPath != "" {
		v.SetConfigFile(cfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/ecodeli")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ECODELI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.defaultCommissionRate", defaults.DefaultCommissionRate)
	v.SetDefault("billing.vatRate", defaults.VATRate)
	v.SetDefault("billing.transferGraceDays", defaults.TransferGraceDays)
	v.SetDefault("billing.invoiceDueDays", defaults.InvoiceDueDays)
	v.SetDefault("billing.billingDay", defaults.BillingDay)
	v.SetDefault("billing.concurrency", defaults.Concurrency)
	v.SetDefault("billing.providerTimeout", defaults.ProviderTimeout)
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.notifyAdmins", defaults.NotifyAdmins)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	loaded, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewBillingConfigHolderFrom(loaded)
	if !fileFound {
		log.Info("billing config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			log.Warn("billing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewBillingConfigHolderFrom wraps a fixed configuration.
func NewBillingConfigHolderFrom(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	return h.current.Load().(BillingConfig)
}

func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return BillingConfig{}, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if err := billingValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid billing config: %w", err)
	}
	return nil
}
