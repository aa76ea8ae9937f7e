package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paysync/internal/models"
)

// SettingRepository handles per-provider payment settings.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// ProviderSettings returns every setting of a provider as a key/value map.
func (r *SettingRepository) ProviderSettings(ctx context.Context, provider string) (map[string]string, error) {
	var rows []models.ProviderSetting
	if err := r.db.WithContext(ctx).Where("provider = ?", provider).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Value
	}
	return out, nil
}

// SetProviderSetting inserts or updates one setting.
func (r *SettingRepository) SetProviderSetting(ctx context.Context, provider, name, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.ProviderSetting{Provider: provider, Name: name, Value: value}).Error
}

// SetProviderSettingIfMissing inserts a setting only when it does not exist yet.
func (r *SettingRepository) SetProviderSettingIfMissing(ctx context.Context, provider, name, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProviderSetting{Provider: provider, Name: name, Value: value}).Error
}
