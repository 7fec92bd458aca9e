package workflow

import "backend/internal/model"

// transitions is the authoritative table of legal report status moves.
// Restricted reports are born PAID and never appear here; everything else
// only changes status through this table.
var transitions = map[string][]string{
	model.ReportStatusWait:     {model.ReportStatusApproved, model.ReportStatusRejected},
	model.ReportStatusApproved: {model.ReportStatusPaid, model.ReportStatusWait},
	model.ReportStatusRejected: {model.ReportStatusWait},
	model.ReportStatusPaid:     {},
}

// CanTransition reports whether a report may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AggregateStatus recomputes the report status from its step list: any
// rejected step rejects the whole report immediately; the report is approved
// only when every step is approved; otherwise it stays in WAIT.
func AggregateStatus(steps []model.ApprovalStep) string {
	if len(steps) == 0 {
		return model.ReportStatusWait
	}

	allApproved := true
	for _, step := range steps {
		switch step.Status {
		case model.StepStatusRejected:
			return model.ReportStatusRejected
		case model.StepStatusWait:
			allApproved = false
		}
	}

	if allApproved {
		return model.ReportStatusApproved
	}
	return model.ReportStatusWait
}
