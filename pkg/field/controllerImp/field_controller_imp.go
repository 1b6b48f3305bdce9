package controllerImp

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"cropcheck/entities"
	"cropcheck/pkg/apperr"
	"cropcheck/pkg/field/controller"
	"cropcheck/pkg/field/service"
	"cropcheck/pkg/middleware"
)

type FieldCtrl struct{ svc service.FieldService }

func New(svc service.FieldService) controller.FieldController { return &FieldCtrl{svc} }

type createReq struct {
	FieldName string  `json:"field_name"`
	AreaRai   float64 `json:"area_rai"`
	Province  string  `json:"province"`
	District  string  `json:"district"`
	Crop      string  `json:"crop"`
}

type zoneReq struct {
	ZoneName string `json:"zone_name"`
	NumTrees int    `json:"num_trees"`
}

func (h *FieldCtrl) Create(c echo.Context) error {
	var req createReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bad_request", "message": "bad json"})
	}
	f := &entities.Field{FieldName: req.FieldName, AreaRai: req.AreaRai, Province: req.Province, District: req.District, Crop: req.Crop}
	out, err := h.svc.CreateField(c.Request().Context(), middleware.UID(c), f)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *FieldCtrl) List(c echo.Context) error {
	out, err := h.svc.ListFields(c.Request().Context(), middleware.UID(c))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}

func (h *FieldCtrl) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bad_request", "message": "invalid field id"})
	}
	f, err := h.svc.GetField(c.Request().Context(), middleware.UID(c), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *FieldCtrl) CreateZone(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bad_request", "message": "invalid field id"})
	}
	var req zoneReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bad_request", "message": "bad json"})
	}
	z, err := h.svc.CreateZone(c.Request().Context(), middleware.UID(c), id, &entities.Zone{ZoneName: req.ZoneName, NumTrees: req.NumTrees})
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, z)
}

func (h *FieldCtrl) ListZones(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bad_request", "message": "invalid field id"})
	}
	out, err := h.svc.ListZones(c.Request().Context(), middleware.UID(c), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}

func paramID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
