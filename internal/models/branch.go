package models

// ServiceMode tells whether a service meets in a building or online.
type ServiceMode string

const (
	// ServiceModeInPerson is a service held at a physical location.
	ServiceModeInPerson ServiceMode = "In-Person"
	// ServiceModeOnline is a service streamed or held over a meeting link.
	ServiceModeOnline ServiceMode = "Online"
)

// Weekdays lists the accepted values of Service.Day.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Branch is a physical or virtual congregation location. Timestamps are Unix seconds.
type Branch struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:160;not null" json:"name"`
	Country   *string      `gorm:"size:80" json:"country,omitempty"`
	Address   string       `gorm:"type:text;not null" json:"address"`
	Phone     string       `gorm:"size:64;not null" json:"phone"`
	IsActive  bool         `gorm:"not null;index" json:"is_active"`
	Order     int          `gorm:"column:sort_order;not null;default:0;index" json:"order"`
	CreatedAt int64        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64        `gorm:"autoUpdateTime" json:"updated_at"`
	Services  []Service    `gorm:"foreignKey:BranchID;constraint:OnDelete:CASCADE" json:"services"`
	Sites     []BranchSite `gorm:"foreignKey:BranchID;constraint:OnDelete:CASCADE" json:"sites"`
}

// TableName specifies the table name for GORM.
func (Branch) TableName() string {
	return "branches"
}

// SiteIDs returns the ids of every tenant the branch is linked to.
func (b *Branch) SiteIDs() []uint {
	ids := make([]uint, 0, len(b.Sites))
	for _, s := range b.Sites {
		ids = append(ids, s.SiteID)
	}
	return ids
}

// Service is one recurring weekly meeting slot owned by a Branch.
type Service struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	BranchID    uint        `gorm:"not null;index" json:"branch_id"`
	Day         string      `gorm:"size:16;not null" json:"day"`
	Type        ServiceMode `gorm:"type:varchar(16);not null" json:"type"`
	ServiceType *string     `gorm:"size:120" json:"service_type,omitempty"`
	Time        string      `gorm:"size:64;not null" json:"time"`
	Location    string      `gorm:"size:255;not null" json:"location"`
	Link        *string     `gorm:"size:500" json:"link,omitempty"`
	CreatedAt   int64       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   int64       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Service) TableName() string {
	return "services"
}

// BranchSite links a Branch to one tenant site.
type BranchSite struct {
	BranchID uint `gorm:"primaryKey;autoIncrement:false" json:"branch_id"`
	SiteID   uint `gorm:"primaryKey;autoIncrement:false;index" json:"site_id"`
}

// TableName specifies the table name for GORM.
func (BranchSite) TableName() string {
	return "branch_sites"
}
