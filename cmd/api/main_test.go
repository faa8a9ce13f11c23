package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"escrowflow/auth"
	"escrowflow/escrow"
)

type stubEscrowService struct {
	rec        escrow.Record
	err        error
	lastCreate escrow.CreateParams
	lastPayout escrow.PayoutRequest
}

func (s *stubEscrowService) Create(_ context.Context, _ escrow.Address, p escrow.CreateParams) (escrow.Record, error) {
	s.lastCreate = p
	return s.rec, s.err
}

func (s *stubEscrowService) Complete(_ context.Context, req escrow.PayoutRequest) (escrow.Record, error) {
	s.lastPayout = req
	return s.rec, s.err
}

func (s *stubEscrowService) Cancel(_ context.Context, _ string, _ escrow.Address) (escrow.Record, error) {
	return s.rec, s.err
}

func (s *stubEscrowService) Dispute(_ context.Context, _ string, _ escrow.Address) (escrow.Record, error) {
	return s.rec, s.err
}

func (s *stubEscrowService) ResolveDispute(_ context.Context, req escrow.PayoutRequest) (escrow.Record, error) {
	s.lastPayout = req
	return s.rec, s.err
}

func (s *stubEscrowService) Get(_ context.Context, _ string) (escrow.Record, error) {
	return s.rec, s.err
}

type stubLedgerService struct {
	balance uint64
	err     error
}

func (s *stubLedgerService) Balance(_ context.Context, _ string) (uint64, error) {
	return s.balance, s.err
}

type stubAuthService struct {
	identity  auth.Identity
	verifyErr error
}

func (s *stubAuthService) IssueKey(_ context.Context, req auth.IssueKeyRequest) (string, auth.APIKey, error) {
	return "id.secret", auth.APIKey{ID: "id", Wallet: req.Wallet, Role: req.Role}, nil
}

func (s *stubAuthService) Authenticate(_ context.Context, _ string) (auth.Identity, string, error) {
	return s.identity, "token", s.verifyErr
}

func (s *stubAuthService) VerifyToken(_ string) (auth.Identity, error) {
	return s.identity, s.verifyErr
}

func testServer(esc *stubEscrowService, identity auth.Identity) *server {
	return &server{
		escrow:    esc,
		ledger:    &stubLedgerService{balance: 42},
		auth:      &stubAuthService{identity: identity},
		authority: "authority-wallet",
		feeWallet: "fee-wallet",
	}
}

func sampleRecord() escrow.Record {
	return escrow.Record{
		TaskID:    "task-1",
		Address:   "addr-1",
		Hirer:     "hirer-wallet",
		Agent:     "agent-wallet",
		Amount:    1000,
		FeeBps:    escrow.PlatformFeeBps,
		Status:    escrow.StatusCreated,
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
}

func TestHandleCreateTask_Success(t *testing.T) {
	esc := &stubEscrowService{rec: sampleRecord()}
	srv := testServer(esc, auth.Identity{Wallet: "hirer-wallet", Role: auth.RoleHirer})

	body := `{"task_id":"task-1","amount":1000,"agent":"agent-wallet"}`
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	if esc.lastCreate.Hirer != "hirer-wallet" {
		t.Errorf("hirer = %s, want caller wallet", esc.lastCreate.Hirer)
	}
	if esc.lastCreate.Authority != "authority-wallet" || esc.lastCreate.FeeWallet != "fee-wallet" {
		t.Errorf("server accounts not injected: %+v", esc.lastCreate)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "created" || resp["task_id"] != "task-1" {
		t.Errorf("response = %v", resp)
	}
}

func TestHandleCreateTask_MissingToken(t *testing.T) {
	srv := testServer(&stubEscrowService{}, auth.Identity{})
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestHandleCompleteTask_Unauthorized(t *testing.T) {
	esc := &stubEscrowService{err: escrow.ErrUnauthorized}
	srv := testServer(esc, auth.Identity{Wallet: "stranger", Role: auth.RoleHirer})

	body := `{"agent":"agent-wallet","fee_wallet":"fee-wallet"}`
	req := httptest.NewRequest(http.MethodPost, "/tasks/task-1/complete", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestHandleResolveTask_NoAuthRequired(t *testing.T) {
	rec := sampleRecord()
	rec.Status = escrow.StatusResolved
	esc := &stubEscrowService{rec: rec}
	srv := testServer(esc, auth.Identity{})

	body := `{"agent":"agent-wallet","fee_wallet":"fee-wallet"}`
	req := httptest.NewRequest(http.MethodPost, "/tasks/task-1/resolve", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if esc.lastPayout.Agent != "agent-wallet" || esc.lastPayout.FeeWallet != "fee-wallet" {
		t.Errorf("payout request = %+v", esc.lastPayout)
	}
}

func TestHandleResolveTask_NotExpired(t *testing.T) {
	esc := &stubEscrowService{err: escrow.ErrDisputeNotExpired}
	srv := testServer(esc, auth.Identity{})

	body := `{"agent":"agent-wallet","fee_wallet":"fee-wallet"}`
	req := httptest.NewRequest(http.MethodPost, "/tasks/task-1/resolve", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestHandleGetTask_NotFound(t *testing.T) {
	esc := &stubEscrowService{err: escrow.ErrNotFound}
	srv := testServer(esc, auth.Identity{})

	req := httptest.NewRequest(http.MethodGet, "/tasks/unknown", nil)
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleBalance(t *testing.T) {
	srv := testServer(&stubEscrowService{}, auth.Identity{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/agent-wallet/balance", nil)
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp struct {
		Address string `json:"address"`
		Balance uint64 `json:"balance"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Address != "agent-wallet" || resp.Balance != 42 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleIssueKey(t *testing.T) {
	srv := testServer(&stubEscrowService{}, auth.Identity{})

	body := `{"owner_name":"Acme","wallet":"hirer-wallet","role":"hirer"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/keys", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["api_key"] == "" || resp["wallet"] != "hirer-wallet" {
		t.Errorf("response = %v", resp)
	}
}
