package prism

import (
	"errors"
	"fmt"
	"strings"

	"prism/core/types"
)

var (
	ErrUnauthorizedAccess = errors.New("prism: unauthorized access")
	ErrUnauthorizedRouter = errors.New("prism: unauthorized router")
	ErrContextExpired     = errors.New("prism: context expired")
	ErrReentrancyDetected = errors.New("prism: reentrancy detected")
	ErrPaused             = errors.New("prism: paused")
	ErrAlreadyPaused      = errors.New("prism: already paused")
	ErrNotPaused          = errors.New("prism: not paused")
	ErrRouteNotFound      = errors.New("prism: route not found")
	ErrInactiveRoute      = errors.New("prism: route not active")
	ErrExtensionNotFound  = errors.New("prism: extension not found")
	ErrExtensionExists    = errors.New("prism: extension already registered")
	ErrUnauthorizedAdmin  = errors.New("prism: caller is not admin")
	ErrNoProposedAdmin    = errors.New("prism: no proposed admin")
	ErrInvalidAddress     = errors.New("prism: invalid address")
	ErrAlreadyInitialized = errors.New("prism: already initialized")
	ErrOnlyCallableBy     = errors.New("prism: only callable by")
	ErrTransportFailure   = errors.New("prism: transport failure")
	ErrInvalidAmount      = errors.New("prism: invalid amount")
	ErrInsufficientFunds  = errors.New("prism: insufficient funds")
	ErrUnknownPauseReason = errors.New("prism: unknown pause reason")
)

// OnlyCallableByError reports a privileged-origin check failure together with
// the identity that would have been accepted.
type OnlyCallableByError struct {
	Expected types.Address
}

func (e *OnlyCallableByError) Error() string {
	return fmt.Sprintf("prism: only callable by %s", e.Expected.Hex())
}

// Is lets errors.Is match against the ErrOnlyCallableBy sentinel.
func (e *OnlyCallableByError) Is(target error) bool {
	return target == ErrOnlyCallableBy
}

// CallError is the serialized form of an application error crossing an actor
// boundary. Codes are stable across upgrades; Detail is informational only.
type CallError struct {
	Code   string
	Detail string
}

const codeInternal = "internal"

var codeToSentinel = map[string]error{
	"unauthorized_access":  ErrUnauthorizedAccess,
	"unauthorized_router":  ErrUnauthorizedRouter,
	"context_expired":      ErrContextExpired,
	"reentrancy_detected":  ErrReentrancyDetected,
	"paused":               ErrPaused,
	"already_paused":       ErrAlreadyPaused,
	"not_paused":           ErrNotPaused,
	"route_not_found":      ErrRouteNotFound,
	"inactive_route":       ErrInactiveRoute,
	"extension_not_found":  ErrExtensionNotFound,
	"extension_exists":     ErrExtensionExists,
	"unauthorized_admin":   ErrUnauthorizedAdmin,
	"no_proposed_admin":    ErrNoProposedAdmin,
	"invalid_address":      ErrInvalidAddress,
	"already_initialized":  ErrAlreadyInitialized,
	"only_callable_by":     ErrOnlyCallableBy,
	"invalid_amount":       ErrInvalidAmount,
	"insufficient_funds":   ErrInsufficientFunds,
	"unknown_pause_reason": ErrUnknownPauseReason,
}

var sentinelToCode = func() map[error]string {
	out := make(map[error]string, len(codeToSentinel))
	for code, sentinel := range codeToSentinel {
		out[sentinel] = code
	}
	return out
}()

// NewCallError maps err onto the wire taxonomy. Errors outside the taxonomy
// travel as an internal failure with the original message preserved.
func NewCallError(err error) *CallError {
	if err == nil {
		return nil
	}
	var restricted *OnlyCallableByError
	if errors.As(err, &restricted) {
		return &CallError{Code: "only_callable_by", Detail: restricted.Expected.Hex()}
	}
	for sentinel, code := range sentinelToCode {
		if errors.Is(err, sentinel) {
			return &CallError{Code: code, Detail: err.Error()}
		}
	}
	return &CallError{Code: codeInternal, Detail: err.Error()}
}

// Err reconstructs an error that unwraps to the original sentinel so the
// caller's errors.Is checks behave identically on both sides of the boundary.
func (e *CallError) Err() error {
	if e == nil {
		return nil
	}
	if e.Code == "only_callable_by" {
		if expected, err := types.ParseAddress(e.Detail); err == nil {
			return &OnlyCallableByError{Expected: expected}
		}
		return ErrOnlyCallableBy
	}
	sentinel, ok := codeToSentinel[e.Code]
	if !ok {
		return errors.New(e.Detail)
	}
	if e.Detail == "" || e.Detail == sentinel.Error() {
		return sentinel
	}
	detail := strings.TrimPrefix(e.Detail, sentinel.Error()+": ")
	return fmt.Errorf("%w: %s", sentinel, detail)
}
