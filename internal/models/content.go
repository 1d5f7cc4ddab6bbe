package models

// Event is a dated gathering shown on a tenant site. StartTime and EndTime are
// UTC Unix seconds.
type Event struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SiteID      uint   `gorm:"not null;index" json:"site_id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `gorm:"size:255" json:"location"`
	StartTime   int64  `gorm:"not null;index" json:"start_time"`
	EndTime     int64  `gorm:"not null" json:"end_time"`
	CreatedAt   int64  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   int64  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Event) TableName() string {
	return "events"
}

// Sermon is a recorded message. Date is UTC Unix seconds.
type Sermon struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SiteID    uint   `gorm:"not null;index" json:"site_id"`
	Title     string `gorm:"size:255;not null" json:"title"`
	Preacher  string `gorm:"size:160" json:"preacher"`
	Date      int64  `gorm:"not null;index" json:"date"`
	VideoURL  string `gorm:"size:500" json:"video_url"`
	CreatedAt int64  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Sermon) TableName() string {
	return "sermons"
}
