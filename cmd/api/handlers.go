package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"escrowflow/auth"
	"escrowflow/escrow"
)

type escrowService interface {
	Create(ctx context.Context, caller escrow.Address, p escrow.CreateParams) (escrow.Record, error)
	Complete(ctx context.Context, req escrow.PayoutRequest) (escrow.Record, error)
	Cancel(ctx context.Context, taskID string, caller escrow.Address) (escrow.Record, error)
	Dispute(ctx context.Context, taskID string, caller escrow.Address) (escrow.Record, error)
	ResolveDispute(ctx context.Context, req escrow.PayoutRequest) (escrow.Record, error)
	Get(ctx context.Context, taskID string) (escrow.Record, error)
}

type ledgerService interface {
	Balance(ctx context.Context, address string) (uint64, error)
}

type authService interface {
	IssueKey(ctx context.Context, req auth.IssueKeyRequest) (string, auth.APIKey, error)
	Authenticate(ctx context.Context, apiKey string) (auth.Identity, string, error)
	VerifyToken(tokenString string) (auth.Identity, error)
}

type server struct {
	escrow    escrowService
	ledger    ledgerService
	auth      authService
	authority escrow.Address
	feeWallet escrow.Address
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/keys", s.handleIssueKey)
	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/complete", s.handleCompleteTask)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancelTask)
	mux.HandleFunc("POST /tasks/{id}/dispute", s.handleDisputeTask)
	mux.HandleFunc("POST /tasks/{id}/resolve", s.handleResolveTask)
	mux.HandleFunc("GET /accounts/{address}/balance", s.handleBalance)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// escrowStatus maps engine rejections onto HTTP status codes.
func escrowStatus(err error) int {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrTaskExists):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrInvalidStatus),
		errors.Is(err, escrow.ErrDisputeNotExpired):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrZeroAmount),
		errors.Is(err, escrow.ErrTaskIDTooLong),
		errors.Is(err, escrow.ErrWrongAgent),
		errors.Is(err, escrow.ErrWrongFeeWallet):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// caller extracts the authenticated identity from the bearer token.
func (s *server) caller(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return auth.Identity{}, errors.New("missing bearer token")
	}
	return s.auth.VerifyToken(token)
}

type recordResponse struct {
	TaskID     string `json:"task_id"`
	Address    string `json:"address"`
	Hirer      string `json:"hirer"`
	Agent      string `json:"agent"`
	Amount     uint64 `json:"amount"`
	FeeBps     uint64 `json:"fee_bps"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	DisputedAt string `json:"disputed_at,omitempty"`
}

func toRecordResponse(rec escrow.Record) recordResponse {
	resp := recordResponse{
		TaskID:    rec.TaskID,
		Address:   string(rec.Address),
		Hirer:     string(rec.Hirer),
		Agent:     string(rec.Agent),
		Amount:    rec.Amount,
		FeeBps:    rec.FeeBps,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.DisputedAt != nil {
		resp.DisputedAt = rec.DisputedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (s *server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	var req auth.IssueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	apiKey, key, err := s.auth.IssueKey(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": apiKey,
		"wallet":  key.Wallet,
		"role":    string(key.Role),
	})
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	identity, token, err := s.auth.Authenticate(r.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidKey) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  token,
		"wallet": identity.Wallet,
		"role":   string(identity.Role),
	})
}

func (s *server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	identity, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
		Amount uint64 `json:"amount"`
		Agent  string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.escrow.Create(r.Context(), escrow.Address(identity.Wallet), escrow.CreateParams{
		TaskID:    req.TaskID,
		Amount:    req.Amount,
		Hirer:     escrow.Address(identity.Wallet),
		Agent:     escrow.Address(req.Agent),
		Authority: s.authority,
		FeeWallet: s.feeWallet,
	})
	if err != nil {
		writeError(w, escrowStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (s *server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	rec, err := s.escrow.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, escrowStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// payoutBody is shared by complete and resolve: the caller must name the
// agent and fee wallet it believes it is paying, and the engine checks them
// against the record.
type payoutBody struct {
	Agent     string `json:"agent"`
	FeeWallet string `json:"fee_wallet"`
}

func (s *server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	identity, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var body payoutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.escrow.Complete(r.Context(), escrow.PayoutRequest{
		TaskID:    r.PathValue("id"),
		Caller:    escrow.Address(identity.Wallet),
		Agent:     escrow.Address(body.Agent),
		FeeWallet: escrow.Address(body.FeeWallet),
	})
	if err != nil {
		writeError(w, escrowStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	identity, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	rec, err := s.escrow.Cancel(r.Context(), r.PathValue("id"), escrow.Address(identity.Wallet))
	if err != nil {
		writeError(w, escrowStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *server) handleDisputeTask(w http.ResponseWriter, r *http.Request) {
	identity, err := s.caller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	rec, err := s.escrow.Dispute(r.Context(), r.PathValue("id"), escrow.Address(identity.Wallet))
	if err != nil {
		writeError(w, escrowStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// handleResolveTask is deliberately unauthenticated: resolution is a
// permissionless crank once the dispute timeout has elapsed.
func (s *server) handleResolveTask(w http.ResponseWriter, r *http.Request) {
	var body payoutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.escrow.ResolveDispute(r.Context(), escrow.PayoutRequest{
		TaskID:    r.PathValue("id"),
		Agent:     escrow.Address(body.Agent),
		FeeWallet: escrow.Address(body.FeeWallet),
	})
	if err != nil {
		writeError(w, escrowStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.Balance(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": r.PathValue("address"),
		"balance": balance,
	})
}
