package models

import "time"

// IndexConstituent is one symbol's membership in a market index, with the
// metadata the universe filter requires.
type IndexConstituent struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	IndexCode string `gorm:"type:varchar(30);not null;uniqueIndex:idx_index_symbol" json:"index_code"`
	Symbol    string `gorm:"type:varchar(20);not null;uniqueIndex:idx_index_symbol;index" json:"symbol"`

	Name         string `gorm:"type:varchar(100)" json:"name"`
	Market       string `gorm:"type:varchar(30)" json:"market"`
	Sector       string `gorm:"type:varchar(60)" json:"sector,omitempty"`
	ListedShares int64  `gorm:"not null;default:0" json:"listed_shares"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (IndexConstituent) TableName() string {
	return "index_constituents"
}
