package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_SetupMountsUnderVersion(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test")
	g.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	NewRouter(engine, WithAPIVersion("v2")).Register(g).Setup()

	w := serve(engine, http.MethodGet, "/api/v2/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/test/ping").Code)
}

func TestRouter_GlobalMiddleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test")
	g.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("seen")) })

	mark := func(c *gin.Context) { c.Set("seen", "yes") }
	NewRouter(engine, WithMiddleware(mark)).Register(g).Setup()

	assert.Equal(t, "yes", serve(engine, http.MethodGet, "/api/v1/test/ping").Body.String())
}

func TestDomainGroup_SubgroupInheritsMiddleware(t *testing.T) {
	engine := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	g := NewDomainGroup("parent", "/parent")
	g.GET("/open", ok)
	g.Group("child", "/child").Use(deny).GET("/closed", ok)
	g.RegisterRoutes(engine.Group("/api"))

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/parent/open").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/parent/child/closed").Code)
}

func TestDomainGroup_IgnoresNilHandlers(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test").Use(nil)
	g.GET("/ping", nil, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	g.RegisterRoutes(engine.Group(""))

	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodGet, "/test/ping").Code)
}

func TestDomainGroup_Routes(t *testing.T) {
	g := NewDomainGroup("workflow", "/workflow")
	g.GET("/session", func(*gin.Context) {})
	g.Group("steps", "").POST("/start", func(*gin.Context) {})

	assert.Equal(t, []Route{
		{Method: http.MethodGet, Path: "/workflow/session"},
		{Method: http.MethodPost, Path: "/workflow/start"},
	}, g.Routes())
	assert.Equal(t, "workflow", g.Name())
	assert.Equal(t, "/workflow", g.Prefix())
}

func allHandlers() Handlers {
	return Handlers{
		Items:    handler.NewItemHandler(nil),
		Orders:   handler.NewOrderHandler(nil),
		Imports:  handler.NewImportHandler(nil),
		Exports:  handler.NewExportHandler(nil, nil),
		Sync:     handler.NewSyncHandler(nil, nil),
		Workflow: handler.NewWorkflowHandler(nil),
		Webhooks: handler.NewWebhookHandler(nil),
		System:   handler.NewSystemHandler("stockledger", "test", nil),
	}
}

func TestGroups_RouteTable(t *testing.T) {
	var routes []Route
	for _, g := range Groups(allHandlers(), Guards{}) {
		routes = append(routes, g.Routes()...)
	}

	expected := []Route{
		{http.MethodGet, "/items"},
		{http.MethodGet, "/items/:id"},
		{http.MethodPatch, "/items/:id/locations"},
		{http.MethodPut, "/items/:id/min-quantity"},
		{http.MethodPost, "/orders"},
		{http.MethodPost, "/imports/stock"},
		{http.MethodGet, "/imports/history"},
		{http.MethodGet, "/imports/history/:id"},
		{http.MethodGet, "/exports/stock"},
		{http.MethodPost, "/exports/diff"},
		{http.MethodPost, "/sync"},
		{http.MethodGet, "/workflow/session"},
		{http.MethodPost, "/workflow/start"},
		{http.MethodPost, "/workflow/select-voxel"},
		{http.MethodPost, "/workflow/advance"},
		{http.MethodPost, "/workflow/skip"},
		{http.MethodPost, "/workflow/end"},
		{http.MethodPost, "/workflow/resume"},
		{http.MethodPost, "/workflow/discard"},
		{http.MethodPost, "/workflow/edit"},
		{http.MethodGet, "/workflow/leaderboard"},
		{http.MethodGet, "/webhooks"},
		{http.MethodGet, "/webhooks/:channel"},
		{http.MethodPut, "/webhooks/:channel"},
		{http.MethodPost, "/webhooks/:channel/test"},
		{http.MethodGet, "/webhooks/:channel/events"},
	}
	for _, r := range expected {
		assert.Contains(t, routes, r)
	}
}

func TestGroups_SkipsMissingHandlers(t *testing.T) {
	groups := Groups(Handlers{Items: handler.NewItemHandler(nil)}, Guards{})
	require.Len(t, groups, 1)
	assert.Equal(t, "items", groups[0].Name())
}

func TestMount_GuardsMutatingRoutes(t *testing.T) {
	engine := gin.New()
	guards := Guards{
		Auth:  func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) },
		Admin: func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) },
	}
	Mount(engine, allHandlers(), guards)

	for _, r := range []Route{
		{http.MethodPatch, "/api/v1/items/a/locations"},
		{http.MethodPut, "/api/v1/items/a/min-quantity"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodPost, "/api/v1/imports/stock"},
		{http.MethodPost, "/api/v1/sync"},
		{http.MethodPost, "/api/v1/workflow/start"},
		{http.MethodPost, "/api/v1/workflow/discard"},
		{http.MethodPut, "/api/v1/webhooks/ozon"},
		{http.MethodPost, "/api/v1/webhooks/ozon/test"},
	} {
		assert.Equal(t, http.StatusUnauthorized, serve(engine, r.Method, r.Path).Code, "%s %s", r.Method, r.Path)
	}

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/ready").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/system/info").Code)
}

func TestMount_ImportNeedsAdminAfterAuth(t *testing.T) {
	engine := gin.New()
	guards := Guards{
		Auth:  func(c *gin.Context) { c.Next() },
		Admin: func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) },
	}
	Mount(engine, allHandlers(), guards)

	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodPost, "/api/v1/imports/stock").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/api/v1/imports/history").Code)
}
