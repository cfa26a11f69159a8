package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kseleznyov/careervault/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.AuthKeyHash == "" {
		writeError(w, http.StatusBadRequest, "email and authKeyHash required")
		return
	}
	userID, err := s.auth.Register(r.Context(), req.Email, req.AuthKeyHash)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "account already exists")
			return
		}
		writeError(w, http.StatusBadRequest, "registration failed")
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{UserID: userID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, userID, err := s.auth.LoginWithIP(r.Context(), req.Email, req.AuthKeyHash, r.RemoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, errs.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many attempts")
		default:
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, UserID: userID.String()})
}

// handleSession confirms the bearer token is still valid.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromCtx(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	rec, err := s.vaults.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// first login: no vault yet, reported as null
			writeJSON(w, http.StatusOK, getVaultResponse{Vault: nil})
			return
		}
		writeError(w, http.StatusInternalServerError, "vault load failed")
		return
	}
	writeJSON(w, http.StatusOK, getVaultResponse{Vault: &vaultEnvelope{
		EncryptedData:   rec.Payload,
		Version:         rec.Version,
		LastModified:    rec.LastModified,
		ServerUpdatedAt: rec.ServerUpdatedAt,
	}})
}

func (s *Server) handlePutVault(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	var req putVaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ver, updatedAt, err := s.vaults.Put(r.Context(), userID, req.EncryptedData, req.LastModified, req.BaseVersion)
	if err != nil {
		if errors.Is(err, errs.ErrVersionConflict) {
			writeError(w, http.StatusConflict, "vault changed on the server")
			return
		}
		writeError(w, http.StatusInternalServerError, "vault save failed")
		return
	}
	writeJSON(w, http.StatusOK, putVaultResponse{Version: ver, ServerUpdatedAt: updatedAt})
}

// handleChangePassword verifies the old credential and applies the atomic
// credential rotation + vault replacement.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.auth.VerifyCredential(r.Context(), userID, req.OldAuthKeyHash); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := s.vaults.ChangePassword(r.Context(), userID, req.NewAuthKeyHash, req.EncryptedData, req.LastModified); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no vault to migrate")
			return
		}
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}
