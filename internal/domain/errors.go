// Package domain contains the call-correlation types and errors.
// Domain errors describe relay-level outcomes, NOT HTTP errors or engine replies.
// Adapters translate them to whatever their transport needs.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNoRule indicates the directory holds no rule for the looked-up number.
	ErrNoRule = errors.New("no rule found")

	// ErrDuplicateRegistration indicates a call id is already registered.
	// This is a data inconsistency, never a routine condition.
	ErrDuplicateRegistration = errors.New("duplicate call registration")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates an event or request failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a required collaborator is unavailable.
	ErrUnavailable = errors.New("unavailable")

	// ErrBusy indicates a module could not take its lock in time and should be retried.
	ErrBusy = errors.New("busy, retry")
)

// NoRuleError names the directory table and key that produced no rule.
type NoRuleError struct {
	Table string
	Key   string
}

// Error implements the error interface.
func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no %s rule for %q", e.Table, e.Key)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NoRuleError) Unwrap() error {
	return ErrNoRule
}

// NewNoRuleError creates a no-rule error with context.
func NewNoRuleError(table, key string) error {
	return &NoRuleError{Table: table, Key: key}
}

// DuplicateRegistrationError carries the colliding call id.
type DuplicateRegistrationError struct {
	CallID string
}

// Error implements the error interface.
func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("call %q is already registered", e.CallID)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *DuplicateRegistrationError) Unwrap() error {
	return ErrDuplicateRegistration
}

// NewDuplicateRegistrationError creates a duplicate registration error.
func NewDuplicateRegistrationError(callID string) error {
	return &DuplicateRegistrationError{CallID: callID}
}

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// IsNoRule checks if an error means no directory rule matched.
func IsNoRule(err error) bool {
	return errors.Is(err, ErrNoRule)
}

// IsDuplicateRegistration checks if an error is a registry collision.
func IsDuplicateRegistration(err error) bool {
	return errors.Is(err, ErrDuplicateRegistration)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsBusy checks if an error asks the caller to retry later.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
