package router

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"cropcheck/pkg/apperr"
	"cropcheck/pkg/auth"
	authCtrl "cropcheck/pkg/auth/controller"
	fieldCtrl "cropcheck/pkg/field/controller"
	inspCtrl "cropcheck/pkg/inspection/controller"
	"cropcheck/pkg/middleware"
	refCtrl "cropcheck/pkg/reference/controller"
)

type Controllers struct {
	Auth       authCtrl.AuthController
	Field      fieldCtrl.FieldController
	Inspection inspCtrl.InspectionController
	Reference  refCtrl.ReferenceController
	Health     interface{ Health(echo.Context) error }
}

type Options struct {
	Verifier       auth.Verifier
	DevLogin       bool
	Metrics        http.Handler
	UploadBodyMax  int64 // bytes
	AllowedOrigins []string
	Logger         *zap.Logger
}

func New(e *echo.Echo, opt Options, ctl Controllers) *echo.Echo {
	origins := opt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.HTTPErrorHandler = apperr.HTTPErrorHandler
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if opt.Logger != nil {
		e.Use(middleware.RequestLogger(opt.Logger))
	}

	e.GET("/health", ctl.Health.Health)
	if opt.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opt.Metrics))
	}
	e.GET("/devlogin", ctl.Auth.DevLogin)

	requireUser := middleware.Auth(opt.Verifier, opt.DevLogin)
	e.GET("/whoami", ctl.Auth.WhoAmI, requireUser)

	api := e.Group("/api", requireUser)

	api.POST("/fields", ctl.Field.Create)
	api.GET("/fields", ctl.Field.List)
	api.GET("/fields/:id", ctl.Field.Get)
	api.POST("/fields/:id/zones", ctl.Field.CreateZone)
	api.GET("/fields/:id/zones", ctl.Field.ListZones)

	api.GET("/reference/nutrients", ctl.Reference.Nutrients)
	api.GET("/reference/fertilizers", ctl.Reference.Fertilizers)
	api.GET("/reference/all", ctl.Reference.All)

	g := api.Group("/inspections")
	g.GET("", ctl.Inspection.List)
	g.POST("/start", ctl.Inspection.Start)
	g.GET("/history", ctl.Inspection.History)
	g.PATCH("/recommendations/:rec_id", ctl.Inspection.PatchRecommendation)
	g.PUT("/recommendations/:rec_id", ctl.Inspection.PatchRecommendation)
	g.GET("/:id", ctl.Inspection.Detail)
	g.POST("/:id/images", ctl.Inspection.UploadImages, bodyLimit(opt.UploadBodyMax))
	g.POST("/:id/analyze", ctl.Inspection.Analyze)
	g.POST("/:id/complete", ctl.Inspection.Complete)
	g.GET("/:id/recommendations", ctl.Inspection.Recommendations)
	return e
}

// bodyLimit caps multipart uploads; n <= 0 leaves them unlimited.
func bodyLimit(n int64) echo.MiddlewareFunc {
	if n <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echoMiddleware.BodyLimit(fmt.Sprintf("%dK", (n+1023)/1024))
}
