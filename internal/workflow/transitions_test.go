package workflow

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.ReportStatusWait, model.ReportStatusApproved, true},
		{model.ReportStatusWait, model.ReportStatusRejected, true},
		{model.ReportStatusWait, model.ReportStatusPaid, false},
		{model.ReportStatusApproved, model.ReportStatusPaid, true},
		{model.ReportStatusApproved, model.ReportStatusWait, true},
		{model.ReportStatusApproved, model.ReportStatusRejected, false},
		{model.ReportStatusRejected, model.ReportStatusWait, true},
		{model.ReportStatusRejected, model.ReportStatusApproved, false},
		{model.ReportStatusPaid, model.ReportStatusWait, false},
		{model.ReportStatusPaid, model.ReportStatusApproved, false},
		{"UNKNOWN", model.ReportStatusWait, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAggregateStatus(t *testing.T) {
	step := func(status string) model.ApprovalStep {
		return model.ApprovalStep{Status: status}
	}

	tests := []struct {
		name  string
		steps []model.ApprovalStep
		want  string
	}{
		{
			name: "no steps stays in wait",
			want: model.ReportStatusWait,
		},
		{
			name:  "all pending",
			steps: []model.ApprovalStep{step(model.StepStatusWait), step(model.StepStatusWait)},
			want:  model.ReportStatusWait,
		},
		{
			name:  "partially approved",
			steps: []model.ApprovalStep{step(model.StepStatusApproved), step(model.StepStatusWait)},
			want:  model.ReportStatusWait,
		},
		{
			name:  "all approved",
			steps: []model.ApprovalStep{step(model.StepStatusApproved), step(model.StepStatusApproved)},
			want:  model.ReportStatusApproved,
		},
		{
			name:  "single rejection wins regardless of other approvals",
			steps: []model.ApprovalStep{step(model.StepStatusApproved), step(model.StepStatusRejected), step(model.StepStatusWait)},
			want:  model.ReportStatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.steps))
		})
	}
}
