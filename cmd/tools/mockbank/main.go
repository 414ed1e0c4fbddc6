// mockbank is a stand-in for the bank payment gateway in local development.
// It accepts submissions on the process endpoint and answers status lookups,
// with a mode switch to exercise the client's retry and failure paths.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type paymentIn struct {
	TransactionReference string          `json:"transaction_reference"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
}

type paymentOut struct {
	Success           bool             `json:"success"`
	TransactionID     string           `json:"transaction_id"`
	Status            string           `json:"status"`
	StatusCode        string           `json:"status_code"`
	StatusDescription string           `json:"status_description"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	ErrorCode         string           `json:"error_code,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
}

type server struct {
	mode string // success, pending, fail, flaky

	mu     sync.Mutex
	flaky  int
	byTxn  map[string]paymentOut
	byIdem map[string]paymentOut
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	mode := flag.String("mode", "success", "response mode: success, pending, fail, flaky")
	flag.Parse()

	s := &server{
		mode:   *mode,
		byTxn:  map[string]paymentOut{},
		byIdem: map[string]paymentOut{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/payments", s.handleSubmit)
	mux.HandleFunc("GET /api/v1/payments/status/", s.handleStatus)

	log.Printf("mockbank listening on %s (mode=%s)", *addr, *mode)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in paymentIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, paymentOut{
			Success: false, Status: "REJECTED", StatusCode: "400",
			ErrorCode: "BAD_REQUEST", ErrorMessage: "malformed payment body",
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Honor idempotency: same key returns the recorded outcome.
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if out, ok := s.byIdem[key]; ok {
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	switch s.mode {
	case "flaky":
		// Every other submission fails with a 503 so retries get exercised.
		s.flaky++
		if s.flaky%2 == 1 {
			http.Error(w, `{"error":"temporarily unavailable"}`, http.StatusServiceUnavailable)
			return
		}
	case "fail":
		writeJSON(w, http.StatusUnprocessableEntity, paymentOut{
			Success: false, Status: "REJECTED", StatusCode: "422",
			ErrorCode: "INSUFFICIENT_FUNDS", ErrorMessage: "insufficient funds in debit account",
		})
		return
	}

	out := paymentOut{
		Success:           true,
		TransactionID:     "MBTXN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:21],
		Status:            "SUCCESS",
		StatusCode:        "000",
		StatusDescription: fmt.Sprintf("payment %s accepted", in.TransactionReference),
		Amount:            &in.Amount,
		Currency:          in.Currency,
	}
	if s.mode == "pending" {
		out.Status = "PENDING"
		out.StatusCode = "001"
		out.StatusDescription = "payment queued for processing"
	}

	s.byTxn[out.TransactionID] = out
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		s.byIdem[key] = out
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/payments/status/")

	s.mu.Lock()
	out, ok := s.byTxn[id]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, paymentOut{
			Success: false, Status: "NOT_FOUND", StatusCode: "404",
			ErrorCode: "NOT_FOUND", ErrorMessage: "no payment for reference",
		})
		return
	}

	// Pending payments settle on the first lookup.
	if out.Status == "PENDING" {
		out.Status = "SUCCESS"
		out.StatusCode = "000"
		out.StatusDescription = "payment settled"
		s.mu.Lock()
		s.byTxn[id] = out
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
