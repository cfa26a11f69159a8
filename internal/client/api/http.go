package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

// HTTPClient implements Client over the REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient constructs a client for the given base URL, e.g.
// "https://vault.example.com".
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// mapTransportErr tags raw transport failures so the retry layer can act on
// the code instead of the net error.
func mapTransportErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errs.Wrap(errs.CodeNetworkTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.CodeNetworkTimeout, err)
	}
	return errs.Wrap(errs.CodeNetworkError, err)
}

// do issues one JSON request and decodes a 2xx response into out (if non-nil).
// Non-2xx statuses are mapped onto the taxonomy.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.CodeUnknown, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return errs.Wrap(errs.CodeUnknown, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.CodeUnknown, err)
	}
	return nil
}

// statusError converts a non-2xx response into a tagged error, including the
// server's error message when present.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}
	return errs.New(errs.FromHTTPStatus(resp.StatusCode), msg)
}

func (c *HTTPClient) Register(ctx context.Context, email, authKeyHash string) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	req := map[string]string{"email": email, "authKeyHash": authKeyHash}
	if err := c.do(ctx, http.MethodPost, "/api/register", "", req, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, authKeyHash string) (*LoginResult, error) {
	var out struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	req := map[string]string{"email": email, "authKeyHash": authKeyHash}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", req, &out); err != nil {
		// a 401 on login means bad credentials, not a stale session
		if errs.CodeOf(err) == errs.CodeUnauthorized {
			return nil, errs.New(errs.CodeInvalidCredentials, "invalid email or password")
		}
		return nil, err
	}
	return &LoginResult{Token: out.Token, UserID: out.UserID}, nil
}

func (c *HTTPClient) ValidateToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/api/session", token, nil, nil)
}

func (c *HTTPClient) GetVault(ctx context.Context, token string) (*VaultEnvelope, error) {
	var out struct {
		Vault *struct {
			EncryptedData   model.EncryptedPayload `json:"encryptedData"`
			Version         int64                  `json:"version"`
			LastModified    time.Time              `json:"lastModified"`
			ServerUpdatedAt time.Time              `json:"serverUpdatedAt"`
		} `json:"vault"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/vault", token, nil, &out); err != nil {
		return nil, err
	}
	if out.Vault == nil {
		return nil, nil
	}
	return &VaultEnvelope{
		EncryptedData:   out.Vault.EncryptedData,
		Version:         out.Vault.Version,
		LastModified:    out.Vault.LastModified,
		ServerUpdatedAt: out.Vault.ServerUpdatedAt,
	}, nil
}

func (c *HTTPClient) PutVault(
	ctx context.Context, token string, payload model.EncryptedPayload, lastModified time.Time, baseVersion int64,
) (*PutResult, error) {
	req := map[string]any{
		"encryptedData": payload,
		"lastModified":  lastModified,
		"baseVersion":   baseVersion,
	}
	var out struct {
		Version         int64     `json:"version"`
		ServerUpdatedAt time.Time `json:"serverUpdatedAt"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/vault", token, req, &out); err != nil {
		return nil, err
	}
	return &PutResult{Version: out.Version, ServerUpdatedAt: out.ServerUpdatedAt}, nil
}

func (c *HTTPClient) ChangePassword(
	ctx context.Context, token, oldAuthKeyHash, newAuthKeyHash string, payload model.EncryptedPayload, lastModified time.Time,
) error {
	req := map[string]any{
		"oldAuthKeyHash": oldAuthKeyHash,
		"newAuthKeyHash": newAuthKeyHash,
		"encryptedData":  payload,
		"lastModified":   lastModified,
	}
	return c.do(ctx, http.MethodPost, "/api/change-password", token, req, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return errs.Wrap(errs.CodeUnknown, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.CodeNetworkError, fmt.Sprintf("health: %s", resp.Status))
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
