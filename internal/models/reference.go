package models

// Currency maps to the `currencies` table.
type Currency struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StoreID uint   `gorm:"column:store_id;index" json:"store_id"`
	Name    string `gorm:"column:name;size:100" json:"name"`
	ISOCode string `gorm:"column:iso_code;size:3" json:"iso_code"`
}

func (Currency) TableName() string {
	return "currencies"
}

// Country maps to the `countries` table.
type Country struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StoreID    uint   `gorm:"column:store_id;index" json:"store_id"`
	Name       string `gorm:"column:name;size:200" json:"name"`
	RegionCode string `gorm:"column:region_code;size:2" json:"region_code"`
}

func (Country) TableName() string {
	return "countries"
}
