package models

import "time"

// Site is the admin-editable record behind one tenant of the registry.
type Site struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Key            string    `gorm:"size:64;not null;uniqueIndex" json:"key"`
	HostPattern    string    `gorm:"size:255;not null;default:''" json:"host_pattern"`
	Name           string    `gorm:"size:160;not null" json:"name"`
	TitleHeader    string    `gorm:"size:255" json:"title_header"`
	TitleSubHeader string    `gorm:"column:title_subheader;size:255" json:"title_subheader"`
	Description    string    `gorm:"type:text" json:"description"`
	LogoPath       string    `gorm:"size:255" json:"logo_path"`
	IsDefault      bool      `gorm:"not null;default:false" json:"is_default"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	Priority       int       `gorm:"not null;default:0" json:"priority"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Site) TableName() string {
	return "sites"
}
