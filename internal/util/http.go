package util

import (
	"net/http"

	"github.com/go-openapi/strfmt"
	"github.com/kashguard/go-keypool/internal/api/httperrors"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/labstack/echo/v4"
)

// Validatable is implemented by the payload types in internal/types.
type Validatable interface {
	Validate(formats strfmt.Registry) error
}

// BindAndValidateBody binds the request body (JSON only) to v and validates it.
func BindAndValidateBody(c echo.Context, v Validatable) error {
	binder := &echo.DefaultBinder{}
	if err := binder.BindBody(c, v); err != nil {
		LogFromEchoContext(c).Debug().Err(err).Msg("Failed to bind request body")
		return httperrors.ErrBadRequestInvalidBody.Wrap(err)
	}

	if err := v.Validate(strfmt.Default); err != nil {
		LogFromEchoContext(c).Debug().Err(err).Msg("Request body failed validation")
		return httperrors.NewFromValidationError(err)
	}

	return nil
}

// ValidateAndReturn validates the response payload before rendering it as JSON.
func ValidateAndReturn(c echo.Context, code int, v Validatable) error {
	if err := v.Validate(strfmt.Default); err != nil {
		LogFromEchoContext(c).Error().Err(err).Msg("Response failed validation")
		return httperrors.NewHTTPErrorWithDetail(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, "Internal Server Error", "response validation failed").Wrap(err)
	}

	return c.JSON(code, v)
}
