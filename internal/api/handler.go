package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"furniture-store/internal/auth"
	"furniture-store/internal/models"
	"furniture-store/internal/service"
	"furniture-store/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const actorKey = "actor"

var validatorOnce sync.Once

// ReadinessCheck is a named dependency probe used by /ready
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services bundles the domain services the handlers call
type Services struct {
	Orders   *service.OrderService
	Carts    *service.CartService
	Products *service.ProductService
	Users    *service.UserService
	History  *service.HistoryService
}

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	cartService    *service.CartService
	productService *service.ProductService
	userService    *service.UserService
	historyService *service.HistoryService
	sessions       *auth.SessionProvider
	checks         []ReadinessCheck
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, sessions *auth.SessionProvider, checks ...ReadinessCheck) *Handler {
	return &Handler{
		orderService:   svc.Orders,
		cartService:    svc.Carts,
		productService: svc.Products,
		userService:    svc.Users,
		historyService: svc.History,
		sessions:       sessions,
		checks:         checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	validatorOnce.Do(useJSONFieldNames)

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", h.logout)
		authGroup.GET("/check-admin", h.checkAdmin)
		authGroup.GET("/me", h.authRequired(), h.me)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		private := v1.Group("", h.authRequired())
		private.POST("/products", h.createProduct)
		private.PUT("/products/:id", h.updateProduct)
		private.DELETE("/products/:id", h.deleteProduct)

		private.GET("/cart", h.getCart)
		private.POST("/cart", h.addCartItem)
		private.PUT("/cart", h.updateCartItem)
		private.DELETE("/cart", h.removeCartItem)

		private.POST("/orders", h.createOrder)
		private.GET("/orders", h.listOrders)
		private.GET("/orders/:id", h.getOrder)
		private.PUT("/orders/:id", h.updateOrder)
		private.GET("/orders/:id/history", h.getOrderHistory)

		private.GET("/admin/operators", h.listOperators)
		private.POST("/admin/operators", h.createOperator)
		private.PUT("/admin/operators/:id", h.setOperatorActive)
		private.DELETE("/admin/operators/:id", h.deleteOperator)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every configured dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			failed[check.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// authRequired resolves the session to an actor. The account is looked
// up on every request so deactivated or deleted users lose access
// immediately and role changes apply without a new login.
func (h *Handler) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionActor, ok := h.sessions.Resolve(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		user, err := h.userService.GetUser(c.Request.Context(), sessionActor.UserID)
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			writeError(c, err)
			c.Abort()
			return
		}
		if err != nil || !user.IsActive {
			_ = h.sessions.Logout(c.Writer, c.Request)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Set(actorKey, models.Actor{UserID: user.ID, Role: user.Role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{}
}

// parseID reads a positive integer path parameter, writing 400 on failure
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
