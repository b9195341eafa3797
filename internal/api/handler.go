package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Catalog is the product surface the handlers need. Reads serve the public
// routes; SetPrimaryImage backs the admin gallery tooling.
type Catalog interface {
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	GetCategoryProducts(ctx context.Context, categoryID int64) ([]models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	GetProductImages(ctx context.Context, productID int64) ([]models.ProductImage, error)
	SetPrimaryImage(ctx context.Context, productID, imageID int64) error
}

// Handler contains HTTP handlers
type Handler struct {
	catalog      Catalog
	carts        *cart.Manager
	reservations *service.ReservationService
	orders       *service.OrderService
	payments     *service.PaymentService
	visits       *service.VisitService
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog Catalog, carts *cart.Manager, reservations *service.ReservationService, orders *service.OrderService, payments *service.PaymentService, visits *service.VisitService) *Handler {
	return &Handler{
		catalog:      catalog,
		carts:        carts,
		reservations: reservations,
		orders:       orders,
		payments:     payments,
		visits:       visits,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	if h.visits != nil {
		router.Use(visitMiddleware(h.visits))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/categories", h.listCategories)
		v1.GET("/categories/:id/products", h.listCategoryProducts)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productID", h.updateCartItem)
		v1.DELETE("/cart/items/:productID", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/cart/merge", h.mergeCart)

		v1.POST("/checkout", h.checkout)
		v1.GET("/checkouts/:checkoutID", h.getCheckout)

		v1.GET("/reservations/:id", h.getReservation)
		v1.POST("/reservations/:id/cancel", h.cancelReservation)
		v1.GET("/users/:id/reservations", h.listUserReservations)
		v1.GET("/users/:id/orders", h.listUserOrders)

		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/shipping-methods", h.listShippingMethods)
		v1.GET("/shipping-methods/:id/quote", h.quoteShipping)

		v1.POST("/payments/preference", h.createCheckoutPreference)
		v1.POST("/payments/product-preference", h.createProductPreference)
		v1.POST("/payments/webhook", h.paymentWebhook)

		admin := v1.Group("/admin")
		{
			admin.GET("/reservations", h.adminListReservations)
			admin.POST("/reservations/:id/confirm", h.adminConfirmReservation)
			admin.POST("/reservations/:id/convert", h.adminConvertReservation)
			admin.POST("/reconcile", h.adminReconcile)
			admin.GET("/orders", h.adminListOrders)
			admin.POST("/orders/:id/shipped", h.adminSetShipped)
			admin.POST("/products/:id/images/:imageID/primary", h.adminSetPrimaryImage)
			admin.GET("/visits/summary", h.adminVisitSummary)
		}
	}
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

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *service.CheckoutValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verr.Lines})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrAlreadyConverted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// sessionID requires the X-Session-ID header that keys the Redis cart.
func sessionID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Session-ID")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Session-ID header"})
		return "", false
	}
	return id, true
}

// userID reads the optional authenticated user header set by the edge proxy.
func userID(c *gin.Context) sql.NullInt64 {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return sql.NullInt64{}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// listCategories handles the category listing
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.GetCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// listCategoryProducts lists a category's products, including products of
// its subcategories for parent categories.
func (h *Handler) listCategoryProducts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	category, err := h.catalog.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	products, err := h.catalog.GetCategoryProducts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"products": products,
	})
}

// listProducts lists or searches available products
func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	var products []models.Product
	var err error

	if term := c.Query("q"); term != "" {
		products, err = h.catalog.SearchProducts(ctx, term)
	} else {
		products, err = h.catalog.GetProducts(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct returns a product with its gallery images
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	images, err := h.catalog.GetProductImages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"images":  images,
	})
}

// getCart returns the priced cart for the session
func (h *Handler) getCart(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	current, err := h.carts.Load(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, current)
}

func (h *Handler) respondCart(c *gin.Context, current *cart.Cart) {
	lines, total, err := h.carts.Detail(c.Request.Context(), current)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lines": lines,
		"total": total,
		"count": current.Len(),
	})
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// addCartItem merges a quantity into the session cart
func (h *Handler) addCartItem(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.catalog.GetProductByID(ctx, req.ProductID); err != nil {
		respondError(c, err)
		return
	}

	current, err := h.carts.Load(ctx, session)
	if err != nil {
		respondError(c, err)
		return
	}
	current.Add(req.ProductID, req.Quantity)
	if err := h.carts.Save(ctx, session, userID(c), current); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, current)
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem sets a line's quantity; zero removes the line
func (h *Handler) updateCartItem(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := h.carts.Load(ctx, session)
	if err != nil {
		respondError(c, err)
		return
	}
	if !current.Set(productID, req.Quantity) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not in cart"})
		return
	}
	if err := h.carts.Save(ctx, session, userID(c), current); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, current)
}

// removeCartItem drops a line from the session cart
func (h *Handler) removeCartItem(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	current, err := h.carts.Load(ctx, session)
	if err != nil {
		respondError(c, err)
		return
	}
	if !current.Remove(productID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not in cart"})
		return
	}
	if err := h.carts.Save(ctx, session, userID(c), current); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, current)
}

// clearCart drops the session cart entirely
func (h *Handler) clearCart(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), session, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// mergeCart folds the durable profile cart into the session cart on login
func (h *Handler) mergeCart(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	uid := userID(c)
	if !uid.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-ID header"})
		return
	}
	current, err := h.carts.MergeSaved(c.Request.Context(), session, uid.Int64)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, current)
}

type checkoutRequest struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerEmail   string `json:"customer_email" binding:"required,email"`
	CustomerPhone   string `json:"customer_phone"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
}

// checkout turns the session cart into a confirmed reservation batch and
// clears the cart on success.
func (h *Handler) checkout(c *gin.Context) {
	session, ok := sessionID(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := h.carts.Load(ctx, session)
	if err != nil {
		respondError(c, err)
		return
	}
	if current.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		return
	}

	uid := userID(c)
	result, err := h.reservations.Checkout(ctx, &service.CheckoutRequest{
		UserID:          uid,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           current.Items(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// The reservations now hold the stock; the cart is spent.
	if err := h.carts.Clear(ctx, session, uid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// getCheckout returns the reservation batch for a checkout ID
func (h *Handler) getCheckout(c *gin.Context) {
	reservations, err := h.reservations.GetCheckout(c.Request.Context(), c.Param("checkoutID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

// getReservation returns one reservation
func (h *Handler) getReservation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	reservation, err := h.reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// cancelReservation cancels a reservation and restores its stock
func (h *Handler) cancelReservation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	reservation, err := h.reservations.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// listUserReservations lists a user's reservations
func (h *Handler) listUserReservations(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	reservations, err := h.reservations.ListUserReservations(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

// listUserOrders lists a user's orders
func (h *Handler) listUserOrders(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	orders, err := h.orders.ListUserOrders(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder returns an order with its items
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// listShippingMethods lists the active carriers
func (h *Handler) listShippingMethods(c *gin.Context) {
	methods, err := h.orders.ListShippingMethods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipping_methods": methods})
}

// quoteShipping prices a carrier for an order total and weight
func (h *Handler) quoteShipping(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	total, err := strconv.ParseInt(c.Query("total"), 10, 64)
	if err != nil || total < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total"})
		return
	}
	weight, _ := strconv.Atoi(c.DefaultQuery("weight_kg", "0"))

	cost, err := h.orders.QuoteShipping(c.Request.Context(), id, total, weight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": cost})
}

type preferenceRequest struct {
	CheckoutID string `json:"checkout_id" binding:"required"`
	PayerEmail string `json:"payer_email"`
}

// createCheckoutPreference creates a payment preference for a reservation
// batch and returns the hosted checkout redirect URL.
func (h *Handler) createCheckoutPreference(c *gin.Context) {
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	reservations, err := h.reservations.GetCheckout(ctx, req.CheckoutID)
	if err != nil {
		respondError(c, err)
		return
	}

	lines, err := h.reservationLines(ctx, reservations)
	if err != nil {
		respondError(c, err)
		return
	}

	payerEmail := req.PayerEmail
	if payerEmail == "" {
		payerEmail = reservations[0].CustomerEmail
	}

	pref, err := h.payments.CreateCheckoutPreference(ctx, req.CheckoutID, lines, payerEmail)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"preference_id": pref.ID,
		"init_point":    pref.InitPoint,
	})
}

// reservationLines rebuilds priced cart lines from a reservation batch so
// the payment preference shows the prices locked at checkout.
func (h *Handler) reservationLines(ctx context.Context, reservations []models.Reservation) ([]cart.Line, error) {
	ids := make([]int64, len(reservations))
	for i, r := range reservations {
		ids[i] = r.ProductID
	}
	products, err := h.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]cart.Line, 0, len(reservations))
	for _, r := range reservations {
		unit := r.TotalPrice / int64(r.Quantity)
		lines = append(lines, cart.Line{
			Product:   byID[r.ProductID],
			Quantity:  r.Quantity,
			UnitPrice: unit,
			LineTotal: r.TotalPrice,
		})
	}
	return lines, nil
}

type productPreferenceRequest struct {
	ProductID  int64  `json:"product_id" binding:"required"`
	PayerEmail string `json:"payer_email"`
}

// createProductPreference creates a buy-it-now preference for one product
func (h *Handler) createProductPreference(c *gin.Context) {
	var req productPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	product, err := h.catalog.GetProductByID(ctx, req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}

	pref, err := h.payments.CreateProductPreference(ctx, product, req.PayerEmail)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"preference_id": pref.ID,
		"init_point":    pref.InitPoint,
	})
}

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// paymentWebhook receives gateway notifications. The gateway retries
// non-2xx responses, so every delivery is acknowledged; failures surface in
// logs and metrics, and the reconcile job backstops losses.
func (h *Handler) paymentWebhook(c *gin.Context) {
	topic := c.Query("topic")
	if topic == "" {
		topic = c.Query("type")
	}
	paymentID := c.Query("id")
	if paymentID == "" {
		paymentID = c.Query("data.id")
	}
	if topic == "" || paymentID == "" {
		var body webhookBody
		if err := c.ShouldBindJSON(&body); err == nil {
			if topic == "" {
				topic = body.Type
			}
			if paymentID == "" {
				paymentID = body.Data.ID
			}
		}
	}

	if _, err := h.payments.HandleNotification(c.Request.Context(), topic, paymentID); err != nil {
		// Acknowledge anyway; the error is already counted and logged.
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// adminListReservations lists every reservation
func (h *Handler) adminListReservations(c *gin.Context) {
	reservations, err := h.reservations.ListReservations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

// adminConfirmReservation confirms a pending reservation
func (h *Handler) adminConfirmReservation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.reservations.Confirm(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	reservation, err := h.reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

type convertRequest struct {
	PaymentID        string `json:"payment_id"`
	ShippingMethodID int64  `json:"shipping_method_id"`
	WeightKg         int    `json:"weight_kg"`
}

// adminConvertReservation converts a confirmed reservation into an order
func (h *Handler) adminConvertReservation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req convertRequest
	_ = c.ShouldBindJSON(&req)

	order, created, err := h.orders.Convert(c.Request.Context(), id, req.PaymentID, req.ShippingMethodID, req.WeightKg)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, order)
}

// adminReconcile converts confirmed reservations that never became orders
func (h *Handler) adminReconcile(c *gin.Context) {
	converted, err := h.orders.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"converted": converted})
}

// adminListOrders lists orders for the shipping dashboard
func (h *Handler) adminListOrders(c *gin.Context) {
	shipped := c.DefaultQuery("shipped", "false") == "true"
	orders, err := h.orders.ListOrdersByShipped(c.Request.Context(), shipped)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type shippedRequest struct {
	Shipped *bool `json:"shipped" binding:"required"`
}

// adminSetShipped flips an order's shipping flag
func (h *Handler) adminSetShipped(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req shippedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.SetShipped(c.Request.Context(), id, *req.Shipped)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// adminSetPrimaryImage promotes one gallery image to primary
func (h *Handler) adminSetPrimaryImage(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(c, "imageID")
	if !ok {
		return
	}

	if err := h.catalog.SetPrimaryImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, err)
		return
	}
	images, err := h.catalog.GetProductImages(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// adminVisitSummary returns the daily visit rollup
func (h *Handler) adminVisitSummary(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	summary, err := h.visits.Summary(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
