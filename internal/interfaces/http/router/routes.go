package router

import (
	"github.com/gin-gonic/gin"

	"github.com/stockledger/backend/internal/interfaces/http/handler"
)

// Handlers are the endpoint handlers of the stock ledger API
type Handlers struct {
	Items    *handler.ItemHandler
	Orders   *handler.OrderHandler
	Imports  *handler.ImportHandler
	Exports  *handler.ExportHandler
	Sync     *handler.SyncHandler
	Workflow *handler.WorkflowHandler
	Webhooks *handler.WebhookHandler
	System   *handler.SystemHandler
}

// Guards are the per-route middleware. Any of them may be nil.
type Guards struct {
	// Auth requires an operator token
	Auth gin.HandlerFunc
	// Admin requires the admin claim; it runs after Auth
	Admin gin.HandlerFunc
	// BodyLimit caps JSON bodies on every route except uploads
	BodyLimit gin.HandlerFunc
	// UploadLimit caps the import body size
	UploadLimit gin.HandlerFunc
	// RemoteLimit rate-limits calls that reach marketplaces or webhooks
	RemoteLimit gin.HandlerFunc
}

// Groups builds the route groups of the API. Reads are public; every call
// that changes the ledger, the session or a configuration needs a token.
func Groups(h Handlers, g Guards) []*DomainGroup {
	var groups []*DomainGroup

	if h.Items != nil {
		items := NewDomainGroup("items", "/items").Use(g.BodyLimit)
		items.GET("", h.Items.List)
		items.GET("/:id", h.Items.Get)
		items.PATCH("/:id/locations", g.Auth, h.Items.UpdateLocation)
		items.PUT("/:id/min-quantity", g.Auth, h.Items.SetMinQuantity)
		groups = append(groups, items)
	}

	if h.Orders != nil {
		orders := NewDomainGroup("orders", "/orders").Use(g.BodyLimit, g.Auth)
		orders.POST("", h.Orders.Process)
		groups = append(groups, orders)
	}

	if h.Imports != nil {
		imports := NewDomainGroup("imports", "/imports").Use(g.UploadLimit, g.Auth, g.Admin)
		imports.POST("/stock", h.Imports.ImportStock)
		imports.GET("/history", h.Imports.History)
		imports.GET("/history/:id", h.Imports.HistoryEntry)
		groups = append(groups, imports)
	}

	if h.Exports != nil {
		exports := NewDomainGroup("exports", "/exports").Use(g.BodyLimit)
		exports.GET("/stock", h.Exports.StockExport)
		exports.POST("/diff", g.Auth, h.Exports.DiffExport)
		groups = append(groups, exports)
	}

	if h.Sync != nil {
		sync := NewDomainGroup("sync", "/sync").Use(g.BodyLimit)
		sync.POST("", g.Auth, g.RemoteLimit, h.Sync.Sync)
		sync.POST("/jobs", g.Auth, g.RemoteLimit, h.Sync.ScheduleJob)
		sync.GET("/jobs", h.Sync.Jobs)
		groups = append(groups, sync)
	}

	if h.Workflow != nil {
		wf := NewDomainGroup("workflow", "/workflow").Use(g.BodyLimit)
		wf.GET("/session", h.Workflow.Session)
		wf.GET("/leaderboard", h.Workflow.Leaderboard)
		steps := wf.Group("workflow-steps", "").Use(g.Auth)
		steps.POST("/start", h.Workflow.Start)
		steps.POST("/select-voxel", h.Workflow.SelectVoxel)
		steps.POST("/advance", h.Workflow.Advance)
		steps.POST("/skip", h.Workflow.Skip)
		steps.POST("/end", h.Workflow.End)
		steps.POST("/resume", h.Workflow.Resume)
		steps.POST("/discard", h.Workflow.Discard)
		steps.POST("/edit", h.Workflow.Edit)
		groups = append(groups, wf)
	}

	if h.Webhooks != nil {
		hooks := NewDomainGroup("webhooks", "/webhooks").Use(g.BodyLimit)
		hooks.GET("", h.Webhooks.List)
		hooks.GET("/:channel", h.Webhooks.Get)
		hooks.GET("/:channel/events", h.Webhooks.Events)
		hooks.PUT("/:channel", g.Auth, h.Webhooks.Update)
		hooks.POST("/:channel/test", g.Auth, g.RemoteLimit, h.Webhooks.Test)
		groups = append(groups, hooks)
	}

	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.Info)
		groups = append(groups, system)
	}

	return groups
}

// Mount registers the API groups on engine plus the unversioned probes
func Mount(engine *gin.Engine, h Handlers, g Guards, opts ...RouterOption) *Router {
	r := NewRouter(engine, opts...)
	for _, group := range Groups(h, g) {
		r.Register(group)
	}
	r.Setup()

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/ready", h.System.Ready)
	}
	return r
}
