package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyBiweekly  Frequency = "BIWEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyBiannual  Frequency = "BIANNUAL"
	FrequencyAnnual    Frequency = "ANNUAL"
	FrequencyOneTime   Frequency = "ONE_TIME"
)

// Frequencies lists every supported frequency
var Frequencies = []Frequency{
	FrequencyWeekly,
	FrequencyBiweekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyBiannual,
	FrequencyAnnual,
	FrequencyOneTime,
}

// IsValid reports whether f is a known frequency
func (f Frequency) IsValid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// IsRecurring is false only for ONE_TIME
func (f Frequency) IsRecurring() bool {
	return f.IsValid() && f != FrequencyOneTime
}

// Kind distinguishes bills (payees) from income sources
type Kind string

const (
	KindBill   Kind = "bill"
	KindIncome Kind = "income"
)

func (k Kind) IsValid() bool {
	return k == KindBill || k == KindIncome
}

// RecurringTemplate is a payee or income source from which obligations are generated
type RecurringTemplate struct {
	ID             int32           `json:"id"`
	OwnerID        int32           `json:"ownerId"`
	Kind           Kind            `json:"kind"`
	Name           string          `json:"name"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
	Frequency      Frequency       `json:"frequency"`
	StartDate      time.Time       `json:"startDate"`
	CategoryID     *int32          `json:"categoryId,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	// GeneratedThrough is the latest due date ever generated. It survives deletion of
	// the generated obligations, so deleted occurrences are not generated again.
	GeneratedThrough *time.Time `json:"generatedThrough,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ResumeAfter returns the date generation continues after: the later of the latest
// stored due date and the watermark. Nil means the template never generated.
func ResumeAfter(maxDueDate, generatedThrough *time.Time) *time.Time {
	switch {
	case maxDueDate == nil:
		return generatedThrough
	case generatedThrough == nil || maxDueDate.After(*generatedThrough):
		return maxDueDate
	}
	return generatedThrough
}

// CreateTemplateInput is the request to create a payee or income source
type CreateTemplateInput struct {
	Kind           Kind
	Name           string
	ExpectedAmount decimal.Decimal
	Frequency      Frequency
	StartDate      time.Time
	CategoryID     *int32
	Notes          *string
}

// GenerationResult summarizes one generation pass
type GenerationResult struct {
	TemplatesChecked int               `json:"templatesChecked"`
	Generated        int               `json:"generated"`
	Failures         []TemplateFailure `json:"failures,omitempty"`
	Obligations      []*Obligation     `json:"-"`
}

// TemplateFailure records a template whose generation failed during a pass
type TemplateFailure struct {
	TemplateID int32  `json:"templateId"`
	OwnerID    int32  `json:"ownerId"`
	Error      string `json:"error"`
}

type RecurringTemplateRepository interface {
	Create(ctx context.Context, template *RecurringTemplate) (*RecurringTemplate, error)
	GetByID(ctx context.Context, ownerID int32, id int32) (*RecurringTemplate, error)
	ListByOwner(ctx context.Context, ownerID int32, kind Kind) ([]*RecurringTemplate, error)
	ListAllRecurring(ctx context.Context) ([]*RecurringTemplate, error)
	Delete(ctx context.Context, ownerID int32, id int32) error
}
