// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter for anything that blocks
//   - Return domain types, never external DTOs or driver types
//   - Error returns use domain error types (ErrNoRule, ErrUnavailable, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/callrelay/internal/domain"
)

// FaxRule is one row of the fax-to-email directory.
type FaxRule struct {
	Number          string
	DeliveryAddress string

	// Limit is the stored concurrency ceiling. Zero means the row had no
	// usable value; callers apply their own default.
	Limit int
}

// ForwardRule is one row of the no-answer forwarding directory.
type ForwardRule struct {
	SourceNumber  string
	ForwardTarget string

	// Delay is the answer wait in seconds.
	Delay int
}

// Directory looks up per-number rules in a named account.
//
// Example usage in application layer:
//
//	rule, err := dir.FaxRule(ctx, "default", "5551234")
//	if domain.IsNoRule(err) {
//	    return declined
//	}
type Directory interface {
	// FaxRule returns the fax rule for the dialed number.
	// Returns domain.ErrNoRule if the number has no row.
	// Returns domain.ErrUnavailable if the account is unknown or unreachable.
	FaxRule(ctx context.Context, account, number string) (*FaxRule, error)

	// ForwardRule returns the forwarding rule for the source number.
	// Same error contract as FaxRule.
	ForwardRule(ctx context.Context, account, source string) (*ForwardRule, error)
}

// RouteRequest asks the engine to resolve a destination for a new leg.
type RouteRequest struct {
	ID         string
	Caller     string
	CallerName string
	Called     string
	Resource   domain.Resource
}

// ExecuteRequest asks the engine to place a call to an already routed target.
type ExecuteRequest struct {
	ID         string
	Caller     string
	CallerName string
	Called     string
	CallTo     string
	Status     string
	Resource   domain.Resource
}

// Engine dispatches synchronous messages back onto the telephony engine bus.
type Engine interface {
	// Route returns the engine's return value for the route request.
	// An unhandled request is an error; the "-" and "error" sentinels are
	// returned as values and left to the caller to interpret.
	Route(ctx context.Context, req RouteRequest) (string, error)

	// Execute starts the call. An unhandled request is an error.
	Execute(ctx context.Context, req ExecuteRequest) error
}
