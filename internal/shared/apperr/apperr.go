package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindGeocode
	KindPersistence
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindGeocode:
		return "geocode"
	case KindPersistence:
		return "persistence"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// ForbiddenMessage is the only text an authorization failure ever carries.
const ForbiddenMessage = "trip not found or access denied"

// Error is the application error. Field is set for validation errors that
// point at a single request field.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Msg: msg}
}

func Authorization() *Error {
	return &Error{Kind: KindAuthorization, Msg: ForbiddenMessage}
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func Geocode(msg string, cause error) *Error {
	return &Error{Kind: KindGeocode, Msg: msg, Err: cause}
}

func Persistence(cause error) *Error {
	return &Error{Kind: KindPersistence, Msg: "storage unavailable", Err: cause}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTP converts err into the fiber error the handlers return. Causes are
// never exposed to the client.
func HTTP(err error) *fiber.Error {
	var e *Error
	if !errors.As(err, &e) {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	switch e.Kind {
	case KindAuthentication:
		return fiber.NewError(fiber.StatusUnauthorized, e.Msg)
	case KindAuthorization:
		return fiber.NewError(fiber.StatusForbidden, ForbiddenMessage)
	case KindValidation:
		msg := e.Msg
		if e.Field != "" {
			msg = e.Field + ": " + e.Msg
		}
		return fiber.NewError(fiber.StatusBadRequest, msg)
	case KindGeocode:
		return fiber.NewError(fiber.StatusUnprocessableEntity, e.Msg)
	case KindPersistence:
		return fiber.NewError(fiber.StatusServiceUnavailable, "temporary failure, please retry")
	case KindNotFound:
		return fiber.NewError(fiber.StatusNotFound, e.Msg)
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
