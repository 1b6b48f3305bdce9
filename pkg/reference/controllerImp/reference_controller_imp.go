package controllerImp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cropcheck/pkg/reference/controller"
	"cropcheck/pkg/reference/repository"
)

type referenceCtrl struct{ repo repository.ReferenceRepository }

func New(repo repository.ReferenceRepository) controller.ReferenceController {
	return &referenceCtrl{repo}
}

func (h *referenceCtrl) Nutrients(c echo.Context) error {
	rows, err := h.repo.ListNutrients(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "store_failure", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": rows})
}

func (h *referenceCtrl) Fertilizers(c echo.Context) error {
	rows, err := h.repo.ListFertilizers(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "store_failure", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": rows})
}

func (h *referenceCtrl) All(c echo.Context) error {
	ctx := c.Request().Context()
	nutrients, err := h.repo.ListNutrients(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "store_failure", "message": err.Error()})
	}
	ferts, err := h.repo.ListFertilizers(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "store_failure", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"nutrients": nutrients, "fertilizers": ferts},
	})
}
