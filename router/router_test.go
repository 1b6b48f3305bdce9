package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cropcheck/database/dbtest"
	"cropcheck/pkg/auth"
	authCtrlImp "cropcheck/pkg/auth/controllerImp"
	"cropcheck/pkg/blob"
	"cropcheck/pkg/classifier"
	fieldCtrlImp "cropcheck/pkg/field/controllerImp"
	fieldRepoImp "cropcheck/pkg/field/repositoryImp"
	fieldSvcImp "cropcheck/pkg/field/serviceImp"
	healthCtrlImp "cropcheck/pkg/health/controllerImp"
	inspCtrlImp "cropcheck/pkg/inspection/controllerImp"
	inspRepoImp "cropcheck/pkg/inspection/repositoryImp"
	inspSvcImp "cropcheck/pkg/inspection/serviceImp"
	"cropcheck/pkg/metrics"
	refCtrlImp "cropcheck/pkg/reference/controllerImp"
	refRepoImp "cropcheck/pkg/reference/repositoryImp"
)

func newTestServer(t *testing.T, devLogin bool) (*echo.Echo, *auth.HMAC) {
	t.Helper()
	db := dbtest.New(t)
	store, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	tokens := auth.NewHMAC("test-secret", time.Hour)
	provider := classifier.NewProvider(func() (classifier.Client, error) { return classifier.NewMock(), nil })
	m := metrics.New()

	svc := inspSvcImp.NewInspectionService(inspRepoImp.New(db), store, provider, nil, zap.NewNop(), inspSvcImp.Options{}, inspSvcImp.WithMetrics(m))
	e := New(echo.New(), Options{Verifier: tokens, DevLogin: devLogin, Metrics: m.Handler(), UploadBodyMax: 1 << 20}, Controllers{
		Auth:       authCtrlImp.NewAuthController(tokens, devLogin),
		Field:      fieldCtrlImp.New(fieldSvcImp.NewFieldService(fieldRepoImp.New(db))),
		Inspection: inspCtrlImp.New(svc, nil),
		Reference:  refCtrlImp.New(refRepoImp.New(db)),
		Health:     healthCtrlImp.NewHealthCtrl(db, provider, ""),
	})
	return e, tokens
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	e, _ := newTestServer(t, false)

	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cropcheck_images_stored_total")

	assert.Equal(t, http.StatusNotFound, serve(e, httptest.NewRequest(http.MethodGet, "/devlogin", nil)).Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	e, tokens := newTestServer(t, false)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/fields", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/reference/all?uid=alice", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query uid needs dev login")

	tok, err := tokens.Issue("alice", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/fields", strings.NewReader(`{"field_name":"North"}`))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = serve(e, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"user_id":"alice"`)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec = serve(e, req)
	assert.JSONEq(t, `{"success":true,"uid":"alice"}`, rec.Body.String())
}

func TestRouter_DevLogin(t *testing.T) {
	e, _ := newTestServer(t, true)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/devlogin?uid=U1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/inspections?uid=U1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestRouter_OversizedUploadUsesErrorShape(t *testing.T) {
	e, tokens := newTestServer(t, false)
	tok, err := tokens.Issue("alice", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/inspections/1/images", strings.NewReader(strings.Repeat("x", 1<<20+1024)))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	rec := serve(e, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), `"error":"payload_too_large"`)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}
