package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mcclellann/loanTracker/pkg/ledger"
	"github.com/mcclellann/loanTracker/pkg/logger"
	"github.com/mcclellann/loanTracker/pkg/store"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("request body must be a JSON object")

// Server holds the ledger instance.
type Server struct {
	ledger *ledger.Ledger
}

func NewServer(l *ledger.Ledger) *Server {
	return &Server{ledger: l}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// writeLedgerError maps ledger and store errors onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrLoanNotFound):
		writeError(w, http.StatusNotFound, "Loan not found", "")
	case errors.Is(err, ledger.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid status transition", err.Error())
	default:
		logger.CtxError(r.Context(), "request failed", err, zap.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

// decodeBody reads a JSON object with numbers kept as json.Number. An empty
// body decodes to an empty map.
func decodeBody(r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	raw, ok := body.(map[string]any)
	if !ok {
		return nil, errBadBody
	}
	return raw, nil
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loan, err := s.ledger.GetLoan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) userLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetLoansForUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), ledger.ParseCreateRequest(raw))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	patch, statusRequested := ledger.ParsePatch(raw)
	loan, err := s.ledger.UpdateLoan(r.Context(), mux.Vars(r)["id"], patch, statusRequested)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	loan, err := s.ledger.RecordPayment(r.Context(), mux.Vars(r)["id"], ledger.ParsePaymentRequest(raw))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteLoan(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
