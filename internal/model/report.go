package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportStatus enum constants
const (
	ReportStatusWait     = "WAIT"
	ReportStatusApproved = "APPROVED"
	ReportStatusRejected = "REJECTED"
	ReportStatusPaid     = "PAID"
)

// StepStatus enum constants
const (
	StepStatusWait     = "WAIT"
	StepStatusApproved = "APPROVED"
	StepStatusRejected = "REJECTED"
)

// TaxState enum constants — post-payment sub-flow, meaningful only once the
// report status is PAID
const (
	TaxStateUncollected = "UNCOLLECTED"
	TaxStateCollected   = "COLLECTED"
	TaxStateCompleted   = "COMPLETED"
)

// CategorySalary is the reserved line item category that forces a report into
// restricted visibility.
const CategorySalary = "salary"

// ExpenseReport is the aggregate root of the approval workflow. Total amount
// always equals the sum of line item amounts; the restricted flag is
// monotonic — once true no workflow action clears it; status only moves
// through the state machine.
type ExpenseReport struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Company    *Company  `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	DrafterID  uuid.UUID `gorm:"type:uuid;not null;index" json:"drafter_id"`
	Drafter    *User     `gorm:"foreignKey:DrafterID" json:"drafter,omitempty"`
	Title      string    `gorm:"type:varchar(255)" json:"title"`
	ReportDate time.Time `gorm:"type:date;not null" json:"report_date"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"`
	Status      string          `gorm:"type:varchar(20);not null;default:'WAIT';index" json:"status"`
	Restricted  bool            `gorm:"not null;default:false;index" json:"restricted"`

	ReceiptURL string     `gorm:"type:text" json:"receipt_url"`
	PaidAt     *time.Time `json:"paid_at"`
	PaidBy     *uuid.UUID `gorm:"type:uuid" json:"paid_by"`

	// Tax sub-flow
	TaxState          string     `gorm:"type:varchar(20);not null;default:'UNCOLLECTED'" json:"tax_state"`
	TaxCollectedAt    *time.Time `json:"tax_collected_at"`
	TaxCollectorID    *uuid.UUID `gorm:"type:uuid" json:"tax_collector_id"`
	TaxCompletedAt    *time.Time `json:"tax_completed_at"`
	RevisionRequested bool       `gorm:"not null;default:false" json:"revision_requested"`
	RevisionReason    string     `gorm:"type:text" json:"revision_reason"`

	LineItems []LineItem     `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"line_items"`
	Steps     []ApprovalStep `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"steps"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // Logical delete only, never purged
}

// LineItem belongs to exactly one report. A "salary" category is the trigger
// for restricted visibility.
type LineItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReportID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"report_id"`
	Category      string          `gorm:"type:varchar(100);not null" json:"category"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	TaxDeductible bool            `gorm:"not null;default:false" json:"tax_deductible"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ApprovalStep is one ordered slot in a report's approver sequence. Restricted
// reports have none. Positions are explicit integers recomputed on append,
// never implied by insertion order.
type ApprovalStep struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReportID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"report_id"`
	Position        int        `gorm:"not null" json:"position"`
	ApproverID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"approver_id"`
	Approver        *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Status          string     `gorm:"type:varchar(20);not null;default:'WAIT'" json:"status"`
	ActedAt         *time.Time `json:"acted_at"`
	Signature       string     `gorm:"type:text" json:"signature"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
