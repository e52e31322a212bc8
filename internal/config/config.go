package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/credit"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/config"
)

// GatewayConfig holds payment provider settings.
type GatewayConfig struct {
	Provider      string
	OmisePublic   string
	OmiseSecret   string
	Timeout       time.Duration
	AutoAuthorize bool
}

// CleanupConfig holds the stale booking cleanup schedule.
type CleanupConfig struct {
	PendingTTL    time.Duration
	ProcessingTTL time.Duration
	Spec          string
	RenewalSpec   string
	BatchSize     int
}

// BookingConfig holds booking-level defaults.
type BookingConfig struct {
	DepositPercent int64
}

// ServiceConfig holds all configuration for the boarding service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	DBConfig       config.DatabaseConfig
	JWTConfig      config.JWTConfig
	KafkaConfig    config.KafkaConfig
	RedisConfig    config.RedisConfig
	GatewayConfig  GatewayConfig
	Pricing        pricing.Rates
	Credits        credit.ExpiryPolicy
	CleanupConfig  CleanupConfig
	BookingConfig  BookingConfig
	IdempotencyTTL time.Duration
}

// Load reads configuration from environment variables and returns a ServiceConfig.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("boarding")
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:           config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:         config.GetAppEnv(v),
		DBConfig:       config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:      config.LoadJWTConfig(v),
		KafkaConfig:    config.LoadKafkaConfig(v),
		RedisConfig:    config.LoadRedisConfig(v),
		GatewayConfig:  loadGatewayConfig(v),
		Pricing:        loadPricing(v),
		Credits:        loadCreditPolicy(v),
		CleanupConfig:  loadCleanupConfig(v),
		BookingConfig:  BookingConfig{DepositPercent: v.GetInt64("BOOKING_DEPOSIT_PERCENT")},
		IdempotencyTTL: v.GetDuration("WEBHOOK_DEDUP_TTL"),
	}
	if err := cfg.Pricing.Validate(); err != nil {
		return nil, err
	}
	if cfg.GatewayConfig.Provider == "omise" && cfg.GatewayConfig.OmiseSecret == "" {
		return nil, fmt.Errorf("OMISE_SECRET_KEY is required when GATEWAY_PROVIDER=omise")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := pricing.DefaultRates()
	v.SetDefault("DB_NAME", "boarding_db")
	v.SetDefault("GATEWAY_PROVIDER", "mock")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("GATEWAY_MOCK_AUTO_AUTHORIZE", true)

	v.SetDefault("PRICING_CURRENCY", d.Currency)
	v.SetDefault("PRICING_YOUNG_ANIMAL_AGE_YEARS", d.YoungAnimalAgeYears)
	v.SetDefault("PRICING_YOUNG_ANIMAL_SURCHARGE_CENTS", d.YoungAnimalSurchargeCents)
	v.SetDefault("PRICING_BOARDING_UNIT_CENTS", d.Boarding.UnitCents)
	v.SetDefault("PRICING_BOARDING_FREE_MINUTES", d.Boarding.FreeMinutes)
	v.SetDefault("PRICING_BOARDING_DEMI_MAX_MINUTES", d.Boarding.DemiMaxMinutes)
	v.SetDefault("PRICING_BOARDING_DEMI_PERCENT", d.Boarding.DemiPercent)
	v.SetDefault("PRICING_DAY_CARE_UNIT_CENTS", d.DayCare.UnitCents)
	v.SetDefault("PRICING_DAY_CARE_HOUR_CAP", d.DayCare.HourCap)
	v.SetDefault("PRICING_DAY_CARE_HOURLY_OVERAGE_CENTS", d.DayCare.HourlyOverageCents)
	setVisitDefaults(v, "DROP_IN", d.DropIn)
	setVisitDefaults(v, "DOG_WALKING", d.DogWalking)

	v.SetDefault("CREDITS_ENFORCE_EXPIRY", true)
	v.SetDefault("CREDITS_DEFAULT_VALIDITY", "2160h")

	v.SetDefault("CLEANUP_PENDING_TTL", "1h")
	v.SetDefault("CLEANUP_PROCESSING_TTL", "24h")
	v.SetDefault("CLEANUP_SPEC", "0 */10 * * * *")
	v.SetDefault("CLEANUP_RENEWAL_SPEC", "0 0 * * * *")
	v.SetDefault("CLEANUP_BATCH_SIZE", 100)

	v.SetDefault("BOOKING_DEPOSIT_PERCENT", 100)
	v.SetDefault("WEBHOOK_DEDUP_TTL", "24h")
}

func setVisitDefaults(v *viper.Viper, prefix string, r pricing.VisitRates) {
	v.SetDefault("PRICING_"+prefix+"_UNIT_CENTS", r.UnitCents)
	v.SetDefault("PRICING_"+prefix+"_BASE_MINUTES", r.BaseMinutes)
	v.SetDefault("PRICING_"+prefix+"_INCREMENT_MINUTES", r.IncrementMinutes)
	v.SetDefault("PRICING_"+prefix+"_INCREMENT_CENTS", r.IncrementCents)
}

func loadGatewayConfig(v *viper.Viper) GatewayConfig {
	return GatewayConfig{
		Provider:      strings.ToLower(v.GetString("GATEWAY_PROVIDER")),
		OmisePublic:   v.GetString("OMISE_PUBLIC_KEY"),
		OmiseSecret:   v.GetString("OMISE_SECRET_KEY"),
		Timeout:       v.GetDuration("GATEWAY_TIMEOUT"),
		AutoAuthorize: v.GetBool("GATEWAY_MOCK_AUTO_AUTHORIZE"),
	}
}

func loadPricing(v *viper.Viper) pricing.Rates {
	return pricing.Rates{
		Currency:                  strings.ToUpper(v.GetString("PRICING_CURRENCY")),
		YoungAnimalAgeYears:       v.GetInt("PRICING_YOUNG_ANIMAL_AGE_YEARS"),
		YoungAnimalSurchargeCents: v.GetInt64("PRICING_YOUNG_ANIMAL_SURCHARGE_CENTS"),
		Boarding: pricing.BoardingRates{
			UnitCents:      v.GetInt64("PRICING_BOARDING_UNIT_CENTS"),
			FreeMinutes:    v.GetInt("PRICING_BOARDING_FREE_MINUTES"),
			DemiMaxMinutes: v.GetInt("PRICING_BOARDING_DEMI_MAX_MINUTES"),
			DemiPercent:    v.GetInt64("PRICING_BOARDING_DEMI_PERCENT"),
		},
		DayCare: pricing.DayCareRates{
			UnitCents:          v.GetInt64("PRICING_DAY_CARE_UNIT_CENTS"),
			HourCap:            v.GetInt("PRICING_DAY_CARE_HOUR_CAP"),
			HourlyOverageCents: v.GetInt64("PRICING_DAY_CARE_HOURLY_OVERAGE_CENTS"),
		},
		DropIn:     loadVisitRates(v, "DROP_IN"),
		DogWalking: loadVisitRates(v, "DOG_WALKING"),
	}
}

func loadVisitRates(v *viper.Viper, prefix string) pricing.VisitRates {
	return pricing.VisitRates{
		UnitCents:        v.GetInt64("PRICING_" + prefix + "_UNIT_CENTS"),
		BaseMinutes:      v.GetInt("PRICING_" + prefix + "_BASE_MINUTES"),
		IncrementMinutes: v.GetInt("PRICING_" + prefix + "_INCREMENT_MINUTES"),
		IncrementCents:   v.GetInt64("PRICING_" + prefix + "_INCREMENT_CENTS"),
	}
}

func loadCreditPolicy(v *viper.Viper) credit.ExpiryPolicy {
	return credit.ExpiryPolicy{
		Enforce:         v.GetBool("CREDITS_ENFORCE_EXPIRY"),
		DefaultValidity: v.GetDuration("CREDITS_DEFAULT_VALIDITY"),
	}
}

func loadCleanupConfig(v *viper.Viper) CleanupConfig {
	return CleanupConfig{
		PendingTTL:    v.GetDuration("CLEANUP_PENDING_TTL"),
		ProcessingTTL: v.GetDuration("CLEANUP_PROCESSING_TTL"),
		Spec:          v.GetString("CLEANUP_SPEC"),
		RenewalSpec:   v.GetString("CLEANUP_RENEWAL_SPEC"),
		BatchSize:     v.GetInt("CLEANUP_BATCH_SIZE"),
	}
}
