package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paysync/internal/models"
)

// ReferenceRepository looks up store-scoped currencies and countries.
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// CurrencyCode returns the ISO code of a store currency.
func (r *ReferenceRepository) CurrencyCode(ctx context.Context, storeID, currencyID uint) (string, error) {
	var c models.Currency
	err := r.db.WithContext(ctx).Where("id = ? AND store_id = ?", currencyID, storeID).First(&c).Error
	if err != nil {
		return "", referenceErr("currency", currencyID, err)
	}
	return c.ISOCode, nil
}

// CountryCode returns the region code of a store country.
func (r *ReferenceRepository) CountryCode(ctx context.Context, storeID, countryID uint) (string, error) {
	var c models.Country
	err := r.db.WithContext(ctx).Where("id = ? AND store_id = ?", countryID, storeID).First(&c).Error
	if err != nil {
		return "", referenceErr("country", countryID, err)
	}
	return c.RegionCode, nil
}

func referenceErr(kind string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrReferenceNotFound)
	}
	return err
}
