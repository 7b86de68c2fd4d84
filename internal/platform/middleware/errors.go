package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/itrust/itrust/internal/platform/apperr"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Message string             `json:"message"`
	Errors  []apperr.Violation `json:"errors,omitempty"`
}

// ErrorHandler renders apperr errors, echo HTTP errors and anything else as
// ErrorBody. Unclassified errors become a generic 500 and are logged.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func render(err error) (int, ErrorBody) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Kind == apperr.KindInternal {
			return http.StatusInternalServerError, ErrorBody{Message: "internal server error"}
		}
		return ae.Kind.Status(), ErrorBody{Message: ae.Message, Errors: ae.Violations}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			var inner *apperr.Error
			if errors.As(he.Internal, &inner) {
				return render(inner)
			}
		}
		msg := fmt.Sprint(he.Message)
		if he.Code >= http.StatusInternalServerError {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorBody{Message: msg}
	}

	return http.StatusInternalServerError, ErrorBody{Message: "internal server error"}
}
