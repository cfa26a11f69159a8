package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, transport-agnostic error tag. UI layers map codes to
// user-visible messages and retry layers consult Retryable instead of
// inspecting transport details.
type Code string

const (
	CodeNetworkOffline      Code = "NETWORK_OFFLINE"
	CodeNetworkTimeout      Code = "NETWORK_TIMEOUT"
	CodeNetworkError        Code = "NETWORK_ERROR"
	CodeSessionExpired      Code = "SESSION_EXPIRED"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeDecryptionFailed    Code = "DECRYPTION_FAILED"
	CodeEncryptionFailed    Code = "ENCRYPTION_FAILED"
	CodeKeyDerivationFailed Code = "KEY_DERIVATION_FAILED"
	CodeInvalidVaultFormat  Code = "INVALID_VAULT_FORMAT"
	CodeSyncConflict        Code = "SYNC_CONFLICT"
	CodeVaultNotFound       Code = "VAULT_NOT_FOUND"
	CodeSaveFailed          Code = "SAVE_FAILED"
	CodeUnknown             Code = "UNKNOWN"
)

// retryable marks codes where repeating the same call can succeed.
// CodeSyncConflict is retryable for callers (reload, then reapply) but the
// transparent retry layer must not replay an identical conflicted write.
var retryable = map[Code]bool{
	CodeNetworkOffline: true,
	CodeNetworkTimeout: true,
	CodeNetworkError:   true,
	CodeSyncConflict:   true,
}

// userMessages maps codes to fixed, actionable messages so raw error text
// never leaks to the UI.
var userMessages = map[Code]string{
	CodeNetworkOffline:      "You appear to be offline. Changes will be kept and synced later.",
	CodeNetworkTimeout:      "The server took too long to respond. Please try again.",
	CodeNetworkError:        "A network error occurred. Please try again.",
	CodeSessionExpired:      "Your session has expired. Please log in again.",
	CodeInvalidCredentials:  "Invalid email or password.",
	CodeUnauthorized:        "Please log in again.",
	CodeDecryptionFailed:    "Could not decrypt your data. Check your password.",
	CodeEncryptionFailed:    "Could not encrypt your data.",
	CodeKeyDerivationFailed: "Could not derive encryption keys.",
	CodeInvalidVaultFormat:  "Your stored data looks corrupted.",
	CodeSyncConflict:        "Your data changed on another device. Reload and try again.",
	CodeVaultNotFound:       "No stored data found.",
	CodeSaveFailed:          "Saving failed. Please try again.",
	CodeUnknown:             "Something went wrong. Please try again.",
}

// Error is a tagged error carrying a taxonomy code. Match with errors.As,
// or use CodeOf/Retryable helpers.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a tagged error with a static message.
func New(code Code, msg string) error {
	return &Error{Code: code, Err: errors.New(msg)}
}

// Wrap tags err with code, preserving the chain for errors.Is/As.
// A nil err yields a bare tagged error.
func Wrap(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown if untagged.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Retryable reports whether the error's code is marked retryable.
// Untagged errors are not retryable.
func Retryable(err error) bool {
	return retryable[CodeOf(err)]
}

// UserMessage returns the fixed user-visible message for the error's code.
func UserMessage(err error) string {
	if msg, ok := userMessages[CodeOf(err)]; ok {
		return msg
	}
	return userMessages[CodeUnknown]
}

// FromHTTPStatus maps a server response status to a taxonomy code.
func FromHTTPStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeSessionExpired
	case status == http.StatusNotFound:
		return CodeVaultNotFound
	case status == http.StatusConflict:
		return CodeSyncConflict
	case status >= 500:
		return CodeNetworkError
	default:
		return CodeUnknown
	}
}
