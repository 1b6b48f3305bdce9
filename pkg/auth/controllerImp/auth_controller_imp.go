package controllerImp

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"cropcheck/pkg/auth/controller"
	"cropcheck/pkg/middleware"
)

// Issuer mints identity tokens.
type Issuer interface {
	Issue(uid, username string) (string, error)
}

type authCtrl struct {
	issuer  Issuer
	enabled bool
}

// NewAuthController wires the dev login and whoami handlers. DevLogin answers
// 404 unless enabled.
func NewAuthController(issuer Issuer, devLoginEnabled bool) controller.AuthController {
	return &authCtrl{issuer: issuer, enabled: devLoginEnabled}
}

func (h *authCtrl) DevLogin(c echo.Context) error {
	if !h.enabled {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "not_found", "message": "dev login is disabled"})
	}
	uid := strings.TrimSpace(c.QueryParam("uid"))
	if uid == "" {
		uid = "U_DEV_DEFAULT"
	}
	tok, err := h.issuer.Issue(uid, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "token_failed", "message": err.Error()})
	}
	c.SetCookie(&http.Cookie{Name: "LINE_UID", Value: uid, Path: "/", HttpOnly: true})
	return c.JSON(http.StatusOK, echo.Map{"success": true, "uid": uid, "token": tok})
}

func (h *authCtrl) WhoAmI(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "uid": middleware.UID(c)})
}
