package model

import (
	"time"

	"github.com/google/uuid"
)

// Role enum constants — exactly one role per user per company
const (
	RoleEmployee          = "EMPLOYEE"
	RoleApprover          = "APPROVER"
	RoleFinancialApprover = "FINANCIAL_APPROVER"
	RoleTaxProcessor      = "TAX_PROCESSOR"
	RoleAdmin             = "ADMIN"
	RoleOwner             = "OWNER"
)

// MembershipStatus enum constants
const (
	MembershipPending  = "PENDING"
	MembershipApproved = "APPROVED"
	MembershipRejected = "REJECTED"
)

// ValidRole reports whether role is one of the known role constants.
func ValidRole(role string) bool {
	switch role {
	case RoleEmployee, RoleApprover, RoleFinancialApprover, RoleTaxProcessor, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// Membership binds a user to a company with a single role. A principal only
// exists once the membership has been approved.
type Membership struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_company_user;index" json:"company_id"`
	Company   *Company  `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_company_user;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      string    `gorm:"type:varchar(30);not null" json:"role"`
	Status    string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
