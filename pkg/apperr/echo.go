package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Respond writes err as {"success":false,"error":<kind>,"message":...} plus
// any details, using the status mapped from its kind.
func Respond(c echo.Context, err error) error {
	kind := KindOf(err)
	body := echo.Map{}
	for k, v := range DetailsOf(err) {
		body[k] = v
	}
	body["success"] = false
	body["error"] = string(kind)
	body["message"] = err.Error()
	return c.JSON(HTTPStatus(kind), body)
}

var kindByStatus = map[int]Kind{
	http.StatusNotFound:              KindNotFound,
	http.StatusForbidden:             KindForbidden,
	http.StatusUnauthorized:          KindUnauthorized,
	http.StatusUnsupportedMediaType:  KindUnsupportedMedia,
	http.StatusRequestEntityTooLarge: KindPayloadTooLarge,
}

// HTTPErrorHandler renders errors raised by echo itself (routing, body limit,
// recovered panics) in the same shape as Respond. echo's status is kept.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = Respond(c, err)
		return
	}

	kind, ok := kindByStatus[he.Code]
	switch {
	case ok:
	case he.Code >= http.StatusInternalServerError:
		kind = KindStoreFailure
	default:
		kind = KindBadRequest
	}
	msg := fmt.Sprint(he.Message)
	if he.Code >= http.StatusInternalServerError {
		msg = http.StatusText(he.Code)
	}
	_ = c.JSON(he.Code, echo.Map{"success": false, "error": string(kind), "message": msg})
}
