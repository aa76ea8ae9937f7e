package bootstrap

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"paysync/internal/payment"
	"paysync/internal/repository"
)

// MigrateAndSeed ensures required tables exist and inserts baseline provider settings.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for provider, defaults := range defaultProviderSettings() {
			if err := ensureProviderSettings(tx, provider, defaults); err != nil {
				return err
			}
		}
		return nil
	})
}

func defaultProviderSettings() map[string]map[string]string {
	common := map[string]string{
		payment.SettingMode:        payment.ModeTest,
		payment.SettingFormURL:     "",
		payment.SettingContinueURL: "",
		payment.SettingCancelURL:   "",
		"test_secret_key":          "",
		"test_public_key":          "",
		"live_secret_key":          "",
		"live_public_key":          "",
		"webhook_secret_test":      "",
		"webhook_secret_live":      "",
	}

	charge := map[string]string{
		payment.SettingCapture:              "false",
		payment.SettingValidateCVC:          "false",
		payment.SettingValidateAddress:      "false",
		payment.SettingAddressPropertyAlias: "billingAddressLine1",
		payment.SettingValidateZipCode:      "false",
		payment.SettingZipCodePropertyAlias: "billingZipCode",
		payment.SettingValidateCountry:      "false",
	}
	subscription := map[string]string{
		payment.SettingPlanPropertyAlias:  "stripePlanId",
		payment.SettingEmailPropertyAlias: "email",
	}

	return map[string]map[string]string{
		payment.AliasStripe:             merge(common, charge),
		payment.AliasStripeSubscription: merge(common, subscription),
	}
}

func merge(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func ensureProviderSettings(tx *gorm.DB, provider string, defaults map[string]string) error {
	settings := repository.NewSettingRepository(tx)
	for name, value := range defaults {
		if err := settings.SetProviderSettingIfMissing(context.Background(), provider, name, value); err != nil {
			return fmt.Errorf("seed %s.%s: %w", provider, name, err)
		}
	}
	return nil
}
