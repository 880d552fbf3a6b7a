package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// The spreadsheet endpoint and the stored JSON use plain numbers for
	// monetary amounts, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type LoanType string

const (
	LoanTypeIndividual LoanType = "individual"
	LoanTypeGroup      LoanType = "group"
)

type LoanDuration string

const (
	DurationOneMonth   LoanDuration = "1month"
	DurationThreeMonth LoanDuration = "3month"
	DurationFiveMonth  LoanDuration = "5month"
	DurationTenMonth   LoanDuration = "10month"
	DurationCustom     LoanDuration = "custom"
)

type LoanStatus string

const (
	StatusActive LoanStatus = "active"
	StatusClosed LoanStatus = "closed"
)

type Payment struct {
	ID      uuid.UUID       `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"` // calendar date, YYYY-MM-DD
	SlipURL string          `json:"slipUrl,omitempty"`
	Note    string          `json:"note,omitempty"`
}

type Loan struct {
	ID             uuid.UUID       `json:"id"`
	BorrowerName   string          `json:"borrowerName"`
	Type           LoanType        `json:"type"`
	Principal      decimal.Decimal `json:"principal"`
	InterestAmount decimal.Decimal `json:"interestAmount"` // fixed amount agreed at creation, not a rate
	Duration       LoanDuration    `json:"duration"`       // descriptive only
	StartDate      string          `json:"startDate"`
	DueDate        string          `json:"dueDate,omitempty"`
	DueDayOfMonth  int             `json:"dueDayOfMonth,omitempty"` // reminder only, no enforcement
	Status         LoanStatus      `json:"status"`
	Payments       []Payment       `json:"payments"`
	CreatedAt      time.Time       `json:"createdAt"`
	ProofURL       string          `json:"proofUrl,omitempty"` // inline image data or remote URL
}

// TotalPaid sums all payments received against the loan.
func (l *Loan) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Obligation is the total amount owed: principal plus the agreed interest.
func (l *Loan) Obligation() decimal.Decimal {
	return l.Principal.Add(l.InterestAmount)
}

// Outstanding is the obligation minus everything paid so far.
func (l *Loan) Outstanding() decimal.Decimal {
	return l.Obligation().Sub(l.TotalPaid())
}

// RecomputeStatus derives the status from the payment history. A loan is
// closed exactly when cumulative payments cover the obligation. Must be
// called after every payment mutation so the status is never stale.
func (l *Loan) RecomputeStatus() {
	if l.TotalPaid().GreaterThanOrEqual(l.Obligation()) {
		l.Status = StatusClosed
	} else {
		l.Status = StatusActive
	}
}

// SummaryStats are aggregate totals derived from the loan collection.
// They are recomputed on demand and never persisted.
type SummaryStats struct {
	TotalLent           decimal.Decimal `json:"totalLent"`
	TotalPaid           decimal.Decimal `json:"totalPaid"`
	TotalActiveInterest decimal.Decimal `json:"totalActiveInterest"`
	TotalClosedInterest decimal.Decimal `json:"totalClosedInterest"`
}
