// Package fault defines the error taxonomy shared by the checkout,
// order and reporting paths. Handlers map these to HTTP statuses with
// HTTPStatus; everything else matches them with errors.As.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError covers malformed input detected before any
// transaction opens: empty carts, non-positive quantities, unknown
// statuses or channels, illegal strict-mode transitions.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError names the entity kind and id so callers can tell an
// unknown product from an unknown order.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }

func NotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

// InsufficientStockError is raised during pre-commit validation when a
// product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// AuthorizationError signals a role or ownership violation. It is
// deliberately distinct from NotFoundError: the order exists, access
// is denied.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func Unauthorized(msg string) error { return &AuthorizationError{Msg: msg} }

// ConflictError is raised when a checkout loses a stock race inside
// the commit transaction. The whole transaction has been rolled back;
// the caller may retry.
type ConflictError struct {
	ProductID string
	Requested int
	Available int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stock conflict on product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// HTTPStatus maps a taxonomy error to its response code. Unknown
// errors are internal.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		is *InsufficientStockError
		ae *AuthorizationError
		ce *ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &is):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ae):
		return http.StatusForbidden
	case errors.As(err, &ce):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
