package controllerImp

import (
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"cropcheck/pkg/apperr"
	"cropcheck/pkg/inspection/controller"
	"cropcheck/pkg/inspection/service"
	"cropcheck/pkg/inspection/types"
	"cropcheck/pkg/middleware"
)

type InspectionCtrl struct {
	svc service.InspectionService
	loc *time.Location
}

func New(svc service.InspectionService, loc *time.Location) controller.InspectionController {
	if loc == nil {
		loc = time.UTC
	}
	return &InspectionCtrl{svc: svc, loc: loc}
}

func badRequest(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": code, "message": msg})
}

func paramID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryUint(c echo.Context, name string) uint {
	v, _ := strconv.ParseUint(c.QueryParam(name), 10, 64)
	return uint(v)
}

func queryInt(c echo.Context, name string) int {
	v, _ := strconv.Atoi(c.QueryParam(name))
	return v
}

type startReq struct {
	FieldID       uint    `json:"field_id"`
	ZoneID        uint    `json:"zone_id"`
	Notes         *string `json:"notes"`
	ForceNewRound bool    `json:"force_new_round"`
}

func (h *InspectionCtrl) Start(c echo.Context) error {
	var req startReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad_request", "bad json")
	}
	if req.FieldID == 0 || req.ZoneID == 0 {
		return badRequest(c, "missing_params", "field_id and zone_id are required")
	}
	out, err := h.svc.StartRound(c.Request().Context(), middleware.UID(c), req.FieldID, req.ZoneID, req.Notes, req.ForceNewRound)
	if err != nil {
		return apperr.Respond(c, err)
	}
	status := http.StatusCreated
	if out.Idempotent {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"success":       true,
		"inspection_id": out.InspectionID,
		"round_no":      out.RoundNo,
		"idempotent":    out.Idempotent,
	})
}

// uploadKeys are the multipart keys read first, in this order; any other
// file keys follow in sorted order.
var uploadKeys = []string{"files", "images", "file", "image"}

func collectUploads(form *multipart.Form) []types.Upload {
	var keys []string
	seen := map[string]bool{}
	for _, k := range uploadKeys {
		if _, ok := form.File[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range form.File {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	var out []types.Upload
	for _, k := range keys {
		for _, fh := range form.File[k] {
			fh := fh
			out = append(out, types.Upload{
				Filename: fh.Filename,
				Size:     fh.Size,
				Open:     func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}
	return out
}

func (h *InspectionCtrl) UploadImages(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "bad_request", "invalid inspection id")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "bad_request", "expected multipart/form-data")
	}
	out, err := h.svc.UploadImages(c.Request().Context(), middleware.UID(c), id, collectUploads(form))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"saved":           out.Saved,
		"skipped":         out.Skipped,
		"quota_remaining": out.QuotaRemaining,
	})
}

func (h *InspectionCtrl) Detail(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "bad_request", "invalid inspection id")
	}
	d, err := h.svc.GetDetail(c.Request().Context(), middleware.UID(c), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"round":    d.Round,
		"images":   d.Images,
		"findings": d.Findings,
		"quota":    d.Quota,
	})
}

func (h *InspectionCtrl) Analyze(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "bad_request", "invalid inspection id")
	}
	res, err := h.svc.Analyze(c.Request().Context(), middleware.UID(c), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":              true,
		"findings":             res.Findings,
		"skipped_normal_count": res.SkippedNormalCount,
		"unknown_labels":       res.UnknownLabels,
		"updated_codes":        res.UpdatedCodes,
	})
}

func (h *InspectionCtrl) Complete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "bad_request", "invalid inspection id")
	}
	out, err := h.svc.Complete(c.Request().Context(), middleware.UID(c), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "inspection_id": out.InspectionID, "status": out.Status})
}

func (h *InspectionCtrl) Recommendations(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "bad_request", "invalid inspection id")
	}
	out, err := h.svc.ListRecommendations(c.Request().Context(), middleware.UID(c), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "items": out})
}

type patchRecReq struct {
	Status      string  `json:"status"`
	AppliedDate *string `json:"applied_date"`
}

func (h *InspectionCtrl) PatchRecommendation(c echo.Context) error {
	id, ok := paramID(c, "rec_id")
	if !ok {
		return badRequest(c, "bad_request", "invalid recommendation id")
	}
	var req patchRecReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad_request", "bad json")
	}
	rec, err := h.svc.SetRecommendationStatus(c.Request().Context(), middleware.UID(c), id, req.Status, req.AppliedDate)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "recommendation": rec})
}

func (h *InspectionCtrl) List(c echo.Context) error {
	page, err := h.svc.ListRounds(c.Request().Context(), middleware.UID(c), types.RoundFilter{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
		Year:     queryInt(c, "year"),
		Month:    queryInt(c, "month"),
		FieldID:  queryUint(c, "field_id"),
		ZoneID:   queryUint(c, "zone_id"),
	})
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"items":     page.Items,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// History accepts from/to as YYYY-MM-DD; to is inclusive.
func (h *InspectionCtrl) History(c echo.Context) error {
	f := types.HistoryFilter{
		Group:   c.QueryParam("group"),
		FieldID: queryUint(c, "field_id"),
		ZoneID:  queryUint(c, "zone_id"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return badRequest(c, "bad_date_format", "from must be YYYY-MM-DD")
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return badRequest(c, "bad_date_format", "to must be YYYY-MM-DD")
		}
		f.To = t.AddDate(0, 0, 1)
	}
	buckets, err := h.svc.History(c.Request().Context(), middleware.UID(c), f)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if f.Group == "" {
		f.Group = "month"
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "group": f.Group, "buckets": buckets})
}
