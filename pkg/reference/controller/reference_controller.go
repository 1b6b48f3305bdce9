package controller

import "github.com/labstack/echo/v4"

type ReferenceController interface {
	Nutrients(c echo.Context) error
	Fertilizers(c echo.Context) error
	All(c echo.Context) error
}
