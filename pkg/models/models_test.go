package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestObligationAndOutstanding(t *testing.T) {
	loan := Loan{
		Principal:      decimal.NewFromInt(1000),
		InterestAmount: decimal.NewFromInt(200),
		Payments: []Payment{
			{ID: uuid.New(), Amount: decimal.NewFromInt(300)},
			{ID: uuid.New(), Amount: decimal.NewFromInt(150)},
		},
	}

	if !loan.Obligation().Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Expected obligation 1200, got %s", loan.Obligation())
	}
	if !loan.TotalPaid().Equal(decimal.NewFromInt(450)) {
		t.Errorf("Expected total paid 450, got %s", loan.TotalPaid())
	}
	if !loan.Outstanding().Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected outstanding 750, got %s", loan.Outstanding())
	}
}

func TestRecomputeStatus(t *testing.T) {
	cases := []struct {
		name     string
		paid     []int64
		expected LoanStatus
	}{
		{"no payments", nil, StatusActive},
		{"partial", []int64{400, 300}, StatusActive},
		{"one short of obligation", []int64{1199}, StatusActive},
		{"exactly the obligation", []int64{1000, 200}, StatusClosed},
		{"overpaid", []int64{1500}, StatusClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loan := Loan{
				Principal:      decimal.NewFromInt(1000),
				InterestAmount: decimal.NewFromInt(200),
				Status:         StatusActive,
			}
			for _, amount := range tc.paid {
				loan.Payments = append(loan.Payments, Payment{ID: uuid.New(), Amount: decimal.NewFromInt(amount)})
			}

			loan.RecomputeStatus()
			if loan.Status != tc.expected {
				t.Errorf("Expected status %s, got %s", tc.expected, loan.Status)
			}
		})
	}
}

func TestRecomputeStatusReopensOnEdit(t *testing.T) {
	// Raising the interest after the loan closed must flip it back to active.
	loan := Loan{
		Principal:      decimal.NewFromInt(1000),
		InterestAmount: decimal.Zero,
		Payments:       []Payment{{ID: uuid.New(), Amount: decimal.NewFromInt(1000)}},
	}
	loan.RecomputeStatus()
	if loan.Status != StatusClosed {
		t.Fatalf("Expected status closed, got %s", loan.Status)
	}

	loan.InterestAmount = decimal.NewFromInt(100)
	loan.RecomputeStatus()
	if loan.Status != StatusActive {
		t.Errorf("Expected status active after interest increase, got %s", loan.Status)
	}
}
