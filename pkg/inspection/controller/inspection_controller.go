package controller

import "github.com/labstack/echo/v4"

type InspectionController interface {
	Start(c echo.Context) error
	UploadImages(c echo.Context) error
	Detail(c echo.Context) error
	Analyze(c echo.Context) error
	Complete(c echo.Context) error
	Recommendations(c echo.Context) error
	PatchRecommendation(c echo.Context) error
	List(c echo.Context) error
	History(c echo.Context) error
}
