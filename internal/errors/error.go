package errors

import (
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrEmptyBasket          = errors.New("basket is empty")
	ErrBasketNotFound       = errors.New("basket not found")
	ErrMissingDelivery      = errors.New("no delivery method selected")
	ErrIncompleteAddress    = errors.New("shipping address is incomplete")
	ErrSessionExpired       = errors.New("session expired, please log in again")
	ErrLoginBlocked         = errors.New("too many failed login attempts")
	ErrNotAuthenticated     = errors.New("not logged in")
	ErrDeliveryNotInCatalog = errors.New("delivery method is not offered")
	ErrStepNotComplete      = errors.New("previous checkout step is not complete")
)

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
