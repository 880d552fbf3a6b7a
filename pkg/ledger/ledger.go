package ledger

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tonsiri/loanbook/pkg/evidence"
	"github.com/tonsiri/loanbook/pkg/models"
	"github.com/tonsiri/loanbook/pkg/stats"
	"github.com/tonsiri/loanbook/pkg/store"
)

var (
	ErrLoanNotFound    = errors.New("loan not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrValidation      = errors.New("validation failed")
)

// CloudClient is the remote side of the sync flow. Pull is awaited, push is
// fire-and-forget, uploads trade inline images for durable URLs.
type CloudClient interface {
	FetchLoans() ([]models.Loan, error)
	PushLoans(loans []models.Loan)
	UploadSlip(base64, fileName string) (string, error)
}

// Ledger is the single source of truth for the in-memory loan collection.
// Every mutation follows the same sequence: validate, resolve evidence,
// mutate memory, save the whole collection locally, push it remotely without
// waiting. Remote failures never block a mutation.
type Ledger struct {
	mu       sync.Mutex
	loans    []models.Loan
	storage  store.Store
	cloud    CloudClient
	lastSync time.Time
	syncErr  bool
}

// NewLedger creates a Ledger over the given local store and cloud client.
func NewLedger(s store.Store, c CloudClient) *Ledger {
	return &Ledger{
		loans:   []models.Loan{},
		storage: s,
		cloud:   c,
	}
}

// LoanInput carries the user-editable loan fields for create and edit.
type LoanInput struct {
	BorrowerName   string              `json:"borrowerName"`
	Type           models.LoanType     `json:"type"`
	Principal      decimal.Decimal     `json:"principal"`
	InterestAmount decimal.Decimal     `json:"interestAmount"`
	Duration       models.LoanDuration `json:"duration"`
	StartDate      string              `json:"startDate"`
	DueDate        string              `json:"dueDate"`
	DueDayOfMonth  int                 `json:"dueDayOfMonth"`
	ProofURL       string              `json:"proofUrl"`
}

// PaymentInput carries the user-editable payment fields.
type PaymentInput struct {
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"`
	SlipURL string          `json:"slipUrl"`
	Note    string          `json:"note"`
}

func validateLoanInput(input *LoanInput) error {
	if strings.TrimSpace(input.BorrowerName) == "" {
		return fmt.Errorf("%w: borrower name is required", ErrValidation)
	}
	if input.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive", ErrValidation)
	}
	if input.InterestAmount.IsNegative() {
		return fmt.Errorf("%w: interest amount cannot be negative", ErrValidation)
	}
	return nil
}

// LoadLocal reads the persisted collection into memory. Called once at
// startup so the user sees data before the first pull completes.
func (l *Ledger) LoadLocal() error {
	loans, err := l.storage.Load()
	if err != nil {
		return fmt.Errorf("failed to load local loans: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loans = loans
	return nil
}

// Sync pulls the remote collection and replaces the in-memory state
// wholesale. On failure the local data is untouched and a sync-error flag is
// raised until the next successful pull.
func (l *Ledger) Sync() ([]models.Loan, error) {
	loans, err := l.cloud.FetchLoans()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.syncErr = true
		return nil, fmt.Errorf("sync failed: %w", err)
	}

	l.loans = loans
	l.lastSync = time.Now()
	l.syncErr = false
	return cloneLoans(l.loans), nil
}

// SyncStatus returns the time of the last successful pull (zero if none yet)
// and whether the most recent pull failed.
func (l *Ledger) SyncStatus() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSync, l.syncErr
}

// CreateLoan validates the input, resolves any inline proof image to a
// durable URL and appends a new active loan to the collection.
func (l *Ledger) CreateLoan(input LoanInput) (*models.Loan, error) {
	if err := validateLoanInput(&input); err != nil {
		return nil, err
	}
	applyLoanInputDefaults(&input)

	proofURL := l.resolveEvidence(input.ProofURL, "proof", input.BorrowerName)

	loan := models.Loan{
		ID:             uuid.New(),
		BorrowerName:   input.BorrowerName,
		Type:           input.Type,
		Principal:      input.Principal,
		InterestAmount: input.InterestAmount,
		Duration:       input.Duration,
		StartDate:      input.StartDate,
		DueDate:        input.DueDate,
		DueDayOfMonth:  input.DueDayOfMonth,
		Status:         models.StatusActive,
		Payments:       []models.Payment{},
		CreatedAt:      time.Now(),
		ProofURL:       proofURL,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loans = append(l.loans, loan)
	if err := l.persistAndPushLocked(); err != nil {
		return nil, err
	}

	out := cloneLoan(loan)
	return &out, nil
}

// UpdateLoan merges the editable fields into the existing record. ID,
// creation time and payment history are preserved; status is recomputed
// because principal or interest may have changed.
func (l *Ledger) UpdateLoan(id uuid.UUID, input LoanInput) (*models.Loan, error) {
	if err := validateLoanInput(&input); err != nil {
		return nil, err
	}
	applyLoanInputDefaults(&input)

	proofURL := l.resolveEvidence(input.ProofURL, "proof", input.BorrowerName)

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOfLocked(id)
	if idx < 0 {
		return nil, ErrLoanNotFound
	}

	loan := &l.loans[idx]
	loan.BorrowerName = input.BorrowerName
	loan.Type = input.Type
	loan.Principal = input.Principal
	loan.InterestAmount = input.InterestAmount
	loan.Duration = input.Duration
	loan.StartDate = input.StartDate
	loan.DueDate = input.DueDate
	loan.DueDayOfMonth = input.DueDayOfMonth
	loan.ProofURL = proofURL
	loan.RecomputeStatus()

	if err := l.persistAndPushLocked(); err != nil {
		return nil, err
	}

	out := cloneLoan(*loan)
	return &out, nil
}

// RecordPayment appends a payment to the loan and recomputes its status.
// The date defaults to today when unspecified.
func (l *Ledger) RecordPayment(loanID uuid.UUID, input PaymentInput) (*models.Payment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}

	borrower, err := l.borrowerName(loanID)
	if err != nil {
		return nil, err
	}
	slipURL := l.resolveEvidence(input.SlipURL, "slip", borrower)

	if input.Date == "" {
		input.Date = time.Now().Format("2006-01-02")
	}

	payment := models.Payment{
		ID:      uuid.New(),
		Amount:  input.Amount,
		Date:    input.Date,
		SlipURL: slipURL,
		Note:    input.Note,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOfLocked(loanID)
	if idx < 0 {
		return nil, ErrLoanNotFound
	}

	loan := &l.loans[idx]
	loan.Payments = append(loan.Payments, payment)
	loan.RecomputeStatus()

	if err := l.persistAndPushLocked(); err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment replaces the identified payment in place, preserving its
// position in the history, then recomputes the loan status.
func (l *Ledger) UpdatePayment(loanID, paymentID uuid.UUID, input PaymentInput) (*models.Payment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}

	borrower, err := l.borrowerName(loanID)
	if err != nil {
		return nil, err
	}
	slipURL := l.resolveEvidence(input.SlipURL, "slip", borrower)

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOfLocked(loanID)
	if idx < 0 {
		return nil, ErrLoanNotFound
	}

	loan := &l.loans[idx]
	for i := range loan.Payments {
		if loan.Payments[i].ID != paymentID {
			continue
		}

		p := &loan.Payments[i]
		p.Amount = input.Amount
		if input.Date != "" {
			p.Date = input.Date
		}
		p.SlipURL = slipURL
		p.Note = input.Note
		loan.RecomputeStatus()

		if err := l.persistAndPushLocked(); err != nil {
			return nil, err
		}
		out := *p
		return &out, nil
	}
	return nil, ErrPaymentNotFound
}

// DeleteLoan removes the loan with the given id from the collection.
func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOfLocked(id)
	if idx < 0 {
		return ErrLoanNotFound
	}

	l.loans = append(l.loans[:idx], l.loans[idx+1:]...)
	return l.persistAndPushLocked()
}

// Loan returns a copy of the loan with the given id.
func (l *Ledger) Loan(id uuid.UUID) (models.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOfLocked(id)
	if idx < 0 {
		return models.Loan{}, ErrLoanNotFound
	}
	return cloneLoan(l.loans[idx]), nil
}

// Loans returns a copy of the full collection in insertion order.
func (l *Ledger) Loans() []models.Loan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneLoans(l.loans)
}

// Search returns the loans whose borrower name contains the query,
// case-insensitively. An empty query matches everything.
func (l *Ledger) Search(query string) []models.Loan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneLoans(l.searchLocked(query))
}

// ActiveLoans returns the matching active loans, largest obligation first.
func (l *Ledger) ActiveLoans(query string) []models.Loan {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := []models.Loan{}
	for _, loan := range l.searchLocked(query) {
		if loan.Status == models.StatusActive {
			active = append(active, cloneLoan(loan))
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Obligation().GreaterThan(active[j].Obligation())
	})
	return active
}

// ClosedLoans returns the matching closed loans, most recently created first.
func (l *Ledger) ClosedLoans(query string) []models.Loan {
	l.mu.Lock()
	defer l.mu.Unlock()

	closed := []models.Loan{}
	for _, loan := range l.searchLocked(query) {
		if loan.Status == models.StatusClosed {
			closed = append(closed, cloneLoan(loan))
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].CreatedAt.After(closed[j].CreatedAt)
	})
	return closed
}

// Stats recomputes the summary totals from the current collection.
func (l *Ledger) Stats() models.SummaryStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return stats.Compute(l.loans)
}

func (l *Ledger) searchLocked(query string) []models.Loan {
	if query == "" {
		return l.loans
	}
	q := strings.ToLower(query)
	matched := []models.Loan{}
	for _, loan := range l.loans {
		if strings.Contains(strings.ToLower(loan.BorrowerName), q) {
			matched = append(matched, loan)
		}
	}
	return matched
}

func (l *Ledger) indexOfLocked(id uuid.UUID) int {
	for i := range l.loans {
		if l.loans[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) borrowerName(loanID uuid.UUID) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOfLocked(loanID)
	if idx < 0 {
		return "", ErrLoanNotFound
	}
	return l.loans[idx].BorrowerName, nil
}

// persistAndPushLocked saves the whole collection locally and then hands it
// to the cloud client for an unawaited remote push. The caller must hold the
// mutex; the push serializes its payload before returning so later mutations
// cannot race it.
func (l *Ledger) persistAndPushLocked() error {
	if err := l.storage.Save(l.loans); err != nil {
		return fmt.Errorf("failed to persist loans: %w", err)
	}
	l.cloud.PushLoans(l.loans)
	return nil
}

// resolveEvidence trades an inline-encoded image for a durable remote URL.
// On upload failure the inline encoding stays as the stored value; the data
// is never lost, just bigger.
func (l *Ledger) resolveEvidence(ref, kind, borrower string) string {
	if !evidence.IsInline(ref) {
		return ref
	}

	fileName := fmt.Sprintf("%s_%s_%d.jpg", kind, borrower, time.Now().UnixMilli())
	url, err := l.cloud.UploadSlip(ref, fileName)
	if err != nil {
		log.Printf("Evidence upload failed, keeping inline image: %v", err)
		return ref
	}
	return url
}

func applyLoanInputDefaults(input *LoanInput) {
	if input.Type == "" {
		input.Type = models.LoanTypeIndividual
	}
	if input.Duration == "" {
		input.Duration = models.DurationOneMonth
	}
	if input.StartDate == "" {
		input.StartDate = time.Now().Format("2006-01-02")
	}
}

func cloneLoan(loan models.Loan) models.Loan {
	out := loan
	out.Payments = append([]models.Payment{}, loan.Payments...)
	return out
}

func cloneLoans(loans []models.Loan) []models.Loan {
	out := make([]models.Loan, len(loans))
	for i, loan := range loans {
		out[i] = cloneLoan(loan)
	}
	return out
}
