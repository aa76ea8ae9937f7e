package models

// ProviderSetting maps to the `provider_settings` table (key-value per provider alias).
type ProviderSetting struct {
	Provider string `gorm:"column:provider;primaryKey;size:100" json:"provider"`
	Name     string `gorm:"column:name;primaryKey;size:200" json:"name"`
	Value    string `gorm:"column:value;type:text" json:"value"`
}

func (ProviderSetting) TableName() string {
	return "provider_settings"
}
