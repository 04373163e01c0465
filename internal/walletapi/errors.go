package walletapi

import "fmt"

// SessionExpiredMessage is shown whenever the backend rejects the session.
const SessionExpiredMessage = "Sesión expirada. Por favor, inicia sesión nuevamente."

// UserFacing is implemented by errors that carry a message meant for direct
// display. An empty UserMessage means the front-end should suppress the
// error text and show a generic fallback instead.
type UserFacing interface {
	UserMessage() string
}

// ValidationError is raised client-side, before any network attempt.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) UserMessage() string {
	return e.Message
}

// SessionExpiredError is returned when an authenticated call comes back with
// 401 or 403. By the time the caller sees it, the token store and the session
// cache have already been invalidated.
type SessionExpiredError struct {
	Status int
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired (status %d)", e.Status)
}

func (e *SessionExpiredError) UserMessage() string {
	return SessionExpiredMessage
}

// BackendRejectedError is a non-2xx response other than 401/403. Message is
// taken from the backend payload's error or message field and is surfaced to
// the user unchanged.
//
// Partial marks a two-phase operation that failed after its settlement phase
// already succeeded; the external ledger and the wallet ledger disagree until
// reconciled manually.
type BackendRejectedError struct {
	Op      string
	Status  int
	Message string
	Partial bool
}

func (e *BackendRejectedError) Error() string {
	if e.Partial {
		return fmt.Sprintf("%s: backend rejected after settlement succeeded (status %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: backend rejected (status %d): %s", e.Op, e.Status, e.Message)
}

func (e *BackendRejectedError) UserMessage() string {
	return e.Message
}

// MalformedResponseError means the backend answered 2xx but the body could
// not be parsed as the operation's success type. Front-ends suppress this
// class from display; UserMessage is deliberately empty.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func (e *MalformedResponseError) UserMessage() string {
	return ""
}

// NetworkError is a transport failure with no HTTP response at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network unavailable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) UserMessage() string {
	return "No se pudo conectar con el servidor. Verifica tu conexión."
}
