package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
	"github.com/kseleznyov/careervault/internal/service"
)

type fakeAuth struct {
	registerID  string
	registerErr error

	loginToken string
	loginUID   uuid.UUID
	loginErr   error

	verifyErr error

	parseUID uuid.UUID
	parseErr error
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(context.Context, string, string) (string, error) {
	return f.registerID, f.registerErr
}

func (f *fakeAuth) LoginWithIP(context.Context, string, string, string) (string, uuid.UUID, error) {
	return f.loginToken, f.loginUID, f.loginErr
}

func (f *fakeAuth) VerifyCredential(context.Context, uuid.UUID, string) error { return f.verifyErr }

func (f *fakeAuth) ParseToken(string) (uuid.UUID, error) { return f.parseUID, f.parseErr }

type fakeVaultSvc struct {
	rec    *model.VaultRecord
	getErr error

	putVer int64
	putErr error

	changeErr error
}

var _ service.VaultService = (*fakeVaultSvc)(nil)

func (f *fakeVaultSvc) Get(context.Context, uuid.UUID) (*model.VaultRecord, error) {
	return f.rec, f.getErr
}

func (f *fakeVaultSvc) Put(context.Context, uuid.UUID, model.EncryptedPayload, time.Time, int64) (int64, time.Time, error) {
	return f.putVer, time.Now(), f.putErr
}

func (f *fakeVaultSvc) ChangePassword(context.Context, uuid.UUID, string, model.EncryptedPayload, time.Time) error {
	return f.changeErr
}

func newTestServer(auth *fakeAuth, vaults *fakeVaultSvc) http.Handler {
	return New(auth, vaults, zap.NewNop()).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h := newTestServer(&fakeAuth{}, &fakeVaultSvc{})
	rec := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	auth := &fakeAuth{registerID: "uid-1"}
	h := newTestServer(auth, &fakeVaultSvc{})

	rec := doJSON(t, h, http.MethodPost, "/api/register", "", registerRequest{Email: "a@example.com", AuthKeyHash: "deadbeef"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.UserID != "uid-1" {
		t.Fatalf("body: %s %v", rec.Body, err)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/register", "", registerRequest{Email: "a@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field: status=%d", rec.Code)
	}

	auth.registerErr = errs.ErrAlreadyExists
	rec = doJSON(t, h, http.MethodPost, "/api/register", "", registerRequest{Email: "a@example.com", AuthKeyHash: "deadbeef"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status=%d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	uid := uuid.Must(uuid.NewV4())
	auth := &fakeAuth{loginToken: "tok-1", loginUID: uid}
	h := newTestServer(auth, &fakeVaultSvc{})

	rec := doJSON(t, h, http.MethodPost, "/api/login", "", loginRequest{Email: "a@example.com", AuthKeyHash: "deadbeef"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token != "tok-1" || resp.UserID != uid.String() {
		t.Fatalf("body: %s %v", rec.Body, err)
	}

	auth.loginErr = errs.ErrUnauthorized
	rec = doJSON(t, h, http.MethodPost, "/api/login", "", loginRequest{Email: "a@example.com", AuthKeyHash: "ff"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad creds: status=%d", rec.Code)
	}

	auth.loginErr = errs.ErrRateLimited
	rec = doJSON(t, h, http.MethodPost, "/api/login", "", loginRequest{Email: "a@example.com", AuthKeyHash: "ff"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("rate limited: status=%d", rec.Code)
	}
}

func TestSession(t *testing.T) {
	t.Parallel()
	auth := &fakeAuth{parseUID: uuid.Must(uuid.NewV4())}
	h := newTestServer(auth, &fakeVaultSvc{})

	rec := doJSON(t, h, http.MethodGet, "/api/session", "tok", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/session", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", rec.Code)
	}

	auth.parseErr = errs.ErrUnauthorized
	rec = doJSON(t, h, http.MethodGet, "/api/session", "bad", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status=%d", rec.Code)
	}
}

func TestGetVault(t *testing.T) {
	t.Parallel()
	uid := uuid.Must(uuid.NewV4())
	auth := &fakeAuth{parseUID: uid}
	vaults := &fakeVaultSvc{getErr: errs.ErrNotFound}
	h := newTestServer(auth, vaults)

	// No vault yet: 200 with null vault, not 404.
	rec := doJSON(t, h, http.MethodGet, "/api/vault", "tok", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp getVaultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Vault != nil {
		t.Fatalf("want null vault, got %s", rec.Body)
	}

	vaults.getErr = nil
	vaults.rec = &model.VaultRecord{
		UserID:  uid,
		Payload: model.EncryptedPayload{Ciphertext: "Y3Q=", Nonce: "bg==", Alg: "xchacha20poly1305"},
		Version: 7,
	}
	rec = doJSON(t, h, http.MethodGet, "/api/vault", "tok", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Vault == nil || resp.Vault.Version != 7 {
		t.Fatalf("body: %s %v", rec.Body, err)
	}
}

func TestPutVault(t *testing.T) {
	t.Parallel()
	auth := &fakeAuth{parseUID: uuid.Must(uuid.NewV4())}
	vaults := &fakeVaultSvc{putVer: 3}
	h := newTestServer(auth, vaults)

	body := putVaultRequest{
		EncryptedData: model.EncryptedPayload{Ciphertext: "Y3Q=", Nonce: "bg==", Alg: "xchacha20poly1305"},
		LastModified:  time.Now(),
		BaseVersion:   2,
	}
	rec := doJSON(t, h, http.MethodPut, "/api/vault", "tok", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var resp putVaultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Version != 3 {
		t.Fatalf("body: %s %v", rec.Body, err)
	}

	vaults.putErr = errs.ErrVersionConflict
	rec = doJSON(t, h, http.MethodPut, "/api/vault", "tok", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale write: status=%d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPut, "/api/vault", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no auth: status=%d", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	auth := &fakeAuth{parseUID: uuid.Must(uuid.NewV4())}
	vaults := &fakeVaultSvc{}
	h := newTestServer(auth, vaults)

	body := changePasswordRequest{
		OldAuthKeyHash: "aa", NewAuthKeyHash: "bb",
		EncryptedData: model.EncryptedPayload{Ciphertext: "Y3Q=", Nonce: "bg==", Alg: "xchacha20poly1305"},
		LastModified:  time.Now(),
	}
	rec := doJSON(t, h, http.MethodPost, "/api/change-password", "tok", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	auth.verifyErr = errs.ErrUnauthorized
	rec = doJSON(t, h, http.MethodPost, "/api/change-password", "tok", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old credential: status=%d", rec.Code)
	}
	auth.verifyErr = nil

	vaults.changeErr = errs.ErrNotFound
	rec = doJSON(t, h, http.MethodPost, "/api/change-password", "tok", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no vault: status=%d", rec.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()
	h := newTestServer(&fakeAuth{parseUID: uuid.Must(uuid.NewV4())}, &fakeVaultSvc{})

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Fatalf("error body: %s", rec.Body)
	}
}
