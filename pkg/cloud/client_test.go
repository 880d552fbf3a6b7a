package cloud

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tonsiri/loanbook/pkg/models"
)

// stubStore records saves; the cloud client only needs Save.
type stubStore struct {
	saved     []models.Loan
	saveCount int
}

func (s *stubStore) Load() ([]models.Loan, error) { return s.saved, nil }
func (s *stubStore) Save(loans []models.Loan) error {
	s.saved = loans
	s.saveCount++
	return nil
}
func (s *stubStore) Close() error { return nil }

func TestFetchLoans(t *testing.T) {
	remote := []models.Loan{{
		ID:           uuid.New(),
		BorrowerName: "Somchai",
		Type:         models.LoanTypeIndividual,
		Principal:    decimal.NewFromInt(1000),
		Status:       models.StatusActive,
		Payments:     []models.Payment{},
		CreatedAt:    time.Now().UTC(),
	}}

	var gotAction, gotCacheBuster string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.URL.Query().Get("action")
		gotCacheBuster = r.URL.Query().Get("t")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"loans":  remote,
		})
	}))
	defer srv.Close()

	storage := &stubStore{}
	c := NewClient(srv.URL, storage)

	loans, err := c.FetchLoans()
	if err != nil {
		t.Fatalf("Failed to fetch loans: %v", err)
	}

	if gotAction != "getLoans" {
		t.Errorf("Expected action getLoans, got %q", gotAction)
	}
	if gotCacheBuster == "" {
		t.Error("Expected a cache-busting token on the pull request")
	}
	if len(loans) != 1 || loans[0].ID != remote[0].ID {
		t.Errorf("Expected the remote loan back, got %v", loans)
	}
	if storage.saveCount != 1 || len(storage.saved) != 1 {
		t.Error("Expected a successful pull to overwrite the local store")
	}
}

func TestFetchLoansProtocolFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer srv.Close()

	storage := &stubStore{}
	c := NewClient(srv.URL, storage)

	if _, err := c.FetchLoans(); err == nil {
		t.Fatal("Expected an error for a response without the success marker")
	}
	if storage.saveCount != 0 {
		t.Error("Expected a failed pull not to touch the local store")
	}
}

func TestFetchLoansServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &stubStore{})
	if _, err := c.FetchLoans(); err == nil {
		t.Fatal("Expected an error for a non-2xx response")
	}
}

func TestFetchLoansTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", &stubStore{})
	if _, err := c.FetchLoans(); err == nil {
		t.Fatal("Expected an error for an unreachable endpoint")
	}
}

func TestPushLoansDelivers(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &stubStore{})
	c.PushLoans([]models.Loan{{
		ID:           uuid.New(),
		BorrowerName: "Somchai",
		Principal:    decimal.NewFromInt(1000),
		Status:       models.StatusActive,
		Payments:     []models.Payment{},
	}})

	select {
	case body := <-bodies:
		var payload struct {
			Action string        `json:"action"`
			Loans  []models.Loan `json:"loans"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("Failed to decode push payload: %v", err)
		}
		if payload.Action != "saveLoans" {
			t.Errorf("Expected action saveLoans, got %q", payload.Action)
		}
		if len(payload.Loans) != 1 {
			t.Errorf("Expected 1 loan in the push payload, got %d", len(payload.Loans))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Push never reached the endpoint")
	}
}

func TestPushLoansIgnoresFailure(t *testing.T) {
	// Fire-and-forget: an unreachable endpoint must not panic or block.
	c := NewClient("http://127.0.0.1:1", &stubStore{})
	c.PushLoans([]models.Loan{})
	time.Sleep(50 * time.Millisecond)
}

func TestUploadSlip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		json.Unmarshal(body, &payload)
		if payload["action"] != "uploadSlip" || payload["fileName"] == "" || payload["base64"] == "" {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status": "success",
			"url":    "https://drive.google.com/file/d/1AbCdEfGhIjKlMnOpQrStUvWxYz12345/view",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &stubStore{})
	url, err := c.UploadSlip("data:image/jpeg;base64,/9j/4AAQ", "slip_somchai_1700000000000.jpg")
	if err != nil {
		t.Fatalf("Failed to upload slip: %v", err)
	}
	if url == "" {
		t.Error("Expected a durable URL back")
	}
}

func TestUploadSlipFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &stubStore{})
	if _, err := c.UploadSlip("data:image/jpeg;base64,/9j/4AAQ", "slip.jpg"); err == nil {
		t.Fatal("Expected an error for a rejected upload")
	}
}
