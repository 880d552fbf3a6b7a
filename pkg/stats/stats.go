// Package stats derives aggregate totals from the loan collection.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/tonsiri/loanbook/pkg/models"
)

// Compute walks the collection once and returns the summary totals. An empty
// collection yields all-zero stats.
func Compute(loans []models.Loan) models.SummaryStats {
	s := models.SummaryStats{
		TotalLent:           decimal.Zero,
		TotalPaid:           decimal.Zero,
		TotalActiveInterest: decimal.Zero,
		TotalClosedInterest: decimal.Zero,
	}

	for i := range loans {
		loan := &loans[i]
		s.TotalLent = s.TotalLent.Add(loan.Principal)
		s.TotalPaid = s.TotalPaid.Add(loan.TotalPaid())

		if loan.Status == models.StatusActive {
			s.TotalActiveInterest = s.TotalActiveInterest.Add(loan.InterestAmount)
		} else {
			s.TotalClosedInterest = s.TotalClosedInterest.Add(loan.InterestAmount)
		}
	}
	return s
}
