package api

import (
	"errors"
	"io"
	"net/http"

	"furniture-store/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest is the optional checkout body
type CreateOrderRequest struct {
	IdempotencyKey string `json:"idempotencyKey" binding:"max=255"`
}

// createOrder checks out the caller's cart
func (h *Handler) createOrder(c *gin.Context) {
	var req CreateOrderRequest

	// an empty body is allowed; chunked bodies carry no length
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBindError(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), actorFrom(c), req.IdempotencyKey)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// listOrders returns the orders visible to the caller
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// updateOrder applies a partial update
func (h *Handler) updateOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var patch models.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeBindError(c, err)
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), actorFrom(c), orderID, patch)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// getOrderHistory returns the recorded lifecycle events of an order
func (h *Handler) getOrderHistory(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	events, err := h.historyService.OrderHistory(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}
