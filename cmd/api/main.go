package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tonsiri/loanbook/pkg/cloud"
	"github.com/tonsiri/loanbook/pkg/config"
	"github.com/tonsiri/loanbook/pkg/evidence"
	"github.com/tonsiri/loanbook/pkg/ledger"
	"github.com/tonsiri/loanbook/pkg/models"
	"github.com/tonsiri/loanbook/pkg/store"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Store // Keep a reference to the storage to close it
}

func NewServer(s store.Store, c ledger.CloudClient) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, c),
		storage: s,
	}
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	r.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	r.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	r.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	r.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	r.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	r.HandleFunc("/loans/{id}/payments/{paymentId}", s.updatePaymentHandler).Methods("PUT")
	r.HandleFunc("/stats", s.statsHandler).Methods("GET")
	r.HandleFunc("/sync", s.syncStatusHandler).Methods("GET")
	r.HandleFunc("/sync", s.syncHandler).Methods("POST")
	return r
}

func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrLoanNotFound), errors.Is(err, ledger.ErrPaymentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var loans []models.Loan
	switch r.URL.Query().Get("status") {
	case "active":
		loans = s.ledger.ActiveLoans(query)
	case "closed":
		loans = s.ledger.ClosedLoans(query)
	default:
		loans = s.ledger.Search(query)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loans)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var input ledger.LoanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.CreateLoan(input)
	if err != nil {
		log.Printf("Error creating loan: %v", err)
		s.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

// loanDetail augments a loan with display-ready evidence links.
type loanDetail struct {
	models.Loan
	ProofPreviewURL string `json:"proofPreviewUrl,omitempty"`
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.Loan(loanID)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loanDetail{
		Loan:            loan,
		ProofPreviewURL: evidence.PreviewURL(loan.ProofURL),
	})
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var input ledger.LoanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.UpdateLoan(loanID, input)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	// Deletion is destructive and unrecoverable, so the caller must confirm
	// it explicitly.
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "Deletion requires confirm=true", http.StatusBadRequest)
		return
	}

	if err := s.ledger.DeleteLoan(loanID); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var input ledger.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payment, err := s.ledger.RecordPayment(loanID, input)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payment)
}

func (s *Server) updatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	loanID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	paymentID, err := uuid.Parse(vars["paymentId"])
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	var input ledger.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payment, err := s.ledger.UpdatePayment(loanID, paymentID, input)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ledger.Stats())
}

type syncStatusResponse struct {
	LastSync  *time.Time `json:"lastSync"`
	SyncError bool       `json:"syncError"`
}

func (s *Server) syncStatusHandler(w http.ResponseWriter, r *http.Request) {
	lastSync, syncErr := s.ledger.SyncStatus()

	status := syncStatusResponse{SyncError: syncErr}
	if !lastSync.IsZero() {
		status.LastSync = &lastSync
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.Sync()
	if err != nil {
		log.Printf("Manual sync failed: %v", err)
		http.Error(w, fmt.Sprintf("Sync failed: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loans)
}

func main() {
	config.Load()

	sqliteStore, err := store.NewSQLiteStore(config.GetString("Store.Path"))
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	cloudClient := cloud.NewClient(config.GetString("Cloud.ScriptURL"), sqliteStore)
	server := NewServer(sqliteStore, cloudClient)

	// Local data first for instant availability, then a best-effort pull.
	if err := server.ledger.LoadLocal(); err != nil {
		log.Fatalf("Failed to load local loans: %v", err)
	}
	go func() {
		if _, err := server.ledger.Sync(); err != nil {
			log.Printf("Initial sync failed, serving local data: %v", err)
		}
	}()

	addr := ":" + config.GetString("Server.Port")
	log.Printf("Server starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, server.router()))
}
