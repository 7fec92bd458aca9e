package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionRegisterCompany   = "REGISTER_COMPANY"
	ActionDeactivateCompany = "DEACTIVATE_COMPANY"
	ActionApproveMembership = "APPROVE_MEMBERSHIP"
	ActionChangeRole        = "CHANGE_ROLE"

	// Report workflow actions
	ActionSubmitReport    = "SUBMIT_REPORT"
	ActionUpdateReport    = "UPDATE_REPORT"
	ActionDeleteReport    = "DELETE_REPORT"
	ActionApproveStep     = "APPROVE_STEP"
	ActionRejectStep      = "REJECT_STEP"
	ActionCancelApproval  = "CANCEL_APPROVAL"
	ActionCancelRejection = "CANCEL_REJECTION"
	ActionAppendStep      = "APPEND_APPROVAL_STEP"
	ActionMarkPaid        = "MARK_PAID"
	ActionAttachReceipt   = "ATTACH_RECEIPT"

	// Tax sub-flow actions
	ActionCollectTax         = "COLLECT_TAX"
	ActionCompleteTax        = "COMPLETE_TAX"
	ActionRequestTaxRevision = "REQUEST_TAX_REVISION"
	ActionAckTaxRevision     = "ACK_TAX_REVISION"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
