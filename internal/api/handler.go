package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bazap-service/internal/service"
	"bazap-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	events      *service.EventService
	inspections *service.InspectionService
	items       *service.ItemService
	receipts    *service.ReceiptService
	printing    *service.PrintService
	auth        *service.AuthService
	audit       *service.AuditService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	events *service.EventService,
	inspections *service.InspectionService,
	items *service.ItemService,
	receipts *service.ReceiptService,
	printing *service.PrintService,
	auth *service.AuthService,
	audit *service.AuditService,
) *Handler {
	return &Handler{
		events:      events,
		inspections: inspections,
		items:       items,
		receipts:    receipts,
		printing:    printing,
		auth:        auth,
		audit:       audit,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(h.auth))
	{
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/refresh", h.refresh)

		v1.POST("/events", h.createEvent)
		v1.GET("/events", h.listEvents)
		v1.GET("/events/:id", h.getEvent)
		v1.POST("/events/:id/items", h.addEventItem)
		v1.DELETE("/events/:id/items/:itemID", h.removeEventItem)
		v1.POST("/events/:id/submit", h.submitEvent)
		v1.POST("/events/:id/complete", h.completeEvent)

		v1.POST("/inspection/decide", h.recordDecision)
		v1.GET("/inspection/:id/label", h.labelPreview)
		v1.GET("/inspection/:id/print", h.printLabel)
		v1.POST("/inspection/print/batch", h.printBatch)
		v1.GET("/inspection/suggestions/:makat", h.reasonSuggestions)

		v1.GET("/items", h.listItems)
		v1.POST("/items", h.createItem)
		v1.GET("/items/search", h.searchItems)
		v1.GET("/items/recent", h.recentItems)
		v1.GET("/items/frequent", h.frequentItems)
		v1.GET("/items/:id", h.getItem)
		v1.PUT("/items/:id", h.updateItem)
		v1.DELETE("/items/:id", h.deleteItem)

		v1.POST("/receipts", h.createReceipt)
		v1.GET("/receipts", h.listReceipts)
		v1.GET("/receipts/:id", h.getReceipt)
		v1.POST("/receipts/:id/cancel", h.cancelReceipt)
		v1.DELETE("/receipts/:id", h.deleteReceipt)

		v1.GET("/audit", h.listAudit)
	}
}

// respondError maps service error kinds to HTTP statuses. Invalid errors
// carry their user-facing message; internal errors never leak details.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case service.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": svcErr.Message})
			return
		case service.KindInvalid:
			c.JSON(http.StatusBadRequest, gin.H{"error": svcErr.Message})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) refresh(c *gin.Context) {
	var req service.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.auth.Refresh(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dto, err := h.events.CreateEvent(c.Request.Context(), &req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

func (h *Handler) listEvents(c *gin.Context) {
	dtos, err := h.events.ListEvents(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

func (h *Handler) getEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	dto, err := h.events.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) addEventItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dto, err := h.events.AddItem(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) removeEventItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	if err := h.events.RemoveItem(c.Request.Context(), id, itemID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) submitEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.events.SubmitForInspection(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "submitted"})
}

func (h *Handler) completeEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.events.Complete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (h *Handler) recordDecision(c *gin.Context) {
	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dto, err := h.inspections.RecordDecision(c.Request.Context(), &req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

func (h *Handler) labelPreview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	data, err := h.inspections.GetLabelData(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *Handler) printLabel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	copies := 1
	if v := c.Query("copies"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			copies = n
		}
	}

	html, err := h.printing.RenderLabel(c.Request.Context(), id, copies)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

type printBatchRequest struct {
	EventItemIDs []int64 `json:"event_item_ids" binding:"required"`
}

func (h *Handler) printBatch(c *gin.Context) {
	var req printBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	html, err := h.printing.RenderBatch(c.Request.Context(), req.EventItemIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *Handler) reasonSuggestions(c *gin.Context) {
	makat := c.Param("makat")
	if makat == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid makat"})
		return
	}

	suggestions, err := h.inspections.GetReasonSuggestions(c.Request.Context(), makat, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (h *Handler) listItems(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	dtos, err := h.items.ListItems(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

func (h *Handler) createItem(c *gin.Context) {
	var req service.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dto, err := h.items.CreateItem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	dto, err := h.items.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dto, err := h.items.UpdateItem(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.items.DeleteItem(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) searchItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	dtos, err := h.items.SearchItems(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

func (h *Handler) recentItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	dtos, err := h.items.RecentItems(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

func (h *Handler) frequentItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	dtos, err := h.items.FrequentItems(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

func (h *Handler) createReceipt(c *gin.Context) {
	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	dto, err := h.receipts.CreateReceipt(c.Request.Context(), &req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

func (h *Handler) listReceipts(c *gin.Context) {
	filter := store.ReceiptFilter{
		SearchTerm: c.Query("q"),
	}

	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.FromDate = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.ToDate = &t
		}
	}
	if v := c.Query("item_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ItemID = id
		}
	}

	dtos, err := h.receipts.ListReceipts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

func (h *Handler) getReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	dto, err := h.receipts.GetReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

type cancelReceiptRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req cancelReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.receipts.CancelReceipt(c.Request.Context(), id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handler) listAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.audit.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) deleteReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.receipts.DeleteReceipt(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
