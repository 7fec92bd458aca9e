package model

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant boundary. Every domain row below carries a company id
// and no query may cross companies. Companies are deactivated, never deleted.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
