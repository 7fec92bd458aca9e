package confidential

import (
	"strings"

	"backend/internal/model"
)

// Classification is the outcome of inspecting a submission's line items and
// explicit flags. Restricted and SalaryRelated overlap but are not identical:
// salary always implies restricted, an explicitly secret report need not
// contain salary items.
type Classification struct {
	Restricted    bool
	SalaryRelated bool
}

// Classify is a pure function of the line items and the explicit secret flag.
// Restricted reports bypass the approval chain entirely and are hidden from
// everyone but the drafter and tax processors.
func Classify(items []model.LineItem, explicitSecret bool) Classification {
	c := Classification{Restricted: explicitSecret}
	for _, item := range items {
		if strings.EqualFold(item.Category, model.CategorySalary) {
			c.SalaryRelated = true
			c.Restricted = true
			break
		}
	}
	return c
}
