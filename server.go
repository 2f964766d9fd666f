package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mmdatafocus/mfg_backend/config"
	"github.com/mmdatafocus/mfg_backend/middlewares"
	"github.com/mmdatafocus/mfg_backend/models"
	"github.com/mmdatafocus/mfg_backend/utils"
	"github.com/mmdatafocus/mfg_backend/workflow"
	"github.com/shopspring/decimal"
)

const defaultPort = "8080"

func main() {
	_ = godotenv.Load()
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := workflow.NewOutboxDispatcher(logger)
	go dispatcher.Run(rootCtx)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Business-Id", "X-User-Name", "X-Correlation-Id"},
		ExposeHeaders:    []string{"X-Correlation-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler)

	api := router.Group("/api", middlewares.RequestContext())
	registerRoutes(api)

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen failed: %v", err)
		}
	}()
	logger.Infof("listening on :%s", port)

	<-rootCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// healthHandler reports not-ready until both backing stores answer, so a load
// balancer holds traffic during the startup retry loops.
func healthHandler(c *gin.Context) {
	if config.GetDB() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database not ready"})
		return
	}
	rdb := config.GetRedisDB()
	if rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis not ready"})
		return
	}
	if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func registerRoutes(api *gin.RouterGroup) {
	api.POST("/parts", createPartHandler)
	api.GET("/parts/:id/inventory", getInventoryHandler)
	api.GET("/parts/:id/stock-transactions", listStockTransactionsHandler)
	api.POST("/parts/:id/adjust", adjustInventoryHandler)

	api.POST("/products", createProductHandler)
	api.POST("/products/:id/bom-items", addBomItemHandler)

	api.POST("/stock-transactions", applyStockTransactionHandler)
	api.DELETE("/stock-transactions/:id", deleteStockTransactionHandler)

	api.POST("/reservations", reserveStockHandler)
	api.POST("/reservations/release", releaseStockHandler)

	api.POST("/sales-orders", createSalesOrderHandler)
	api.GET("/sales-orders", listSalesOrdersHandler)
	api.PATCH("/sales-orders/:id/status", updateSalesOrderStatusHandler)

	api.POST("/purchase-orders", createPurchaseOrderHandler)
	api.GET("/purchase-orders", listPurchaseOrdersHandler)
	api.POST("/purchase-orders/:id/receive", receivePurchaseOrderHandler)

	api.POST("/mrp/run", runMrpHandler)
	api.GET("/mrp/results", listMrpResultsHandler)
	api.PATCH("/mrp/results/:id/status", updateMrpResultStatusHandler)
}

// statusForError maps domain sentinels to HTTP codes. Anything unmapped is a
// plain 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorInsufficientStock),
		errors.Is(err, utils.ErrorInsufficientAvailableStock),
		errors.Is(err, utils.ErrorRollbackUnsupported):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func createPartHandler(c *gin.Context) {
	var input models.NewPart
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	part, err := models.CreatePart(c.Request.Context(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, part)
}

func getInventoryHandler(c *gin.Context) {
	partId, ok := pathId(c)
	if !ok {
		return
	}
	rec, err := models.GetInventoryRecord(c.Request.Context(), partId)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func listStockTransactionsHandler(c *gin.Context) {
	partId, ok := pathId(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := models.GetStockTransactions(c.Request.Context(), partId, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

type adjustInventoryRequest struct {
	NewQty decimal.Decimal `json:"new_qty" binding:"required"`
	Reason string          `json:"reason"`
	Notes  string          `json:"notes"`
}

func adjustInventoryHandler(c *gin.Context) {
	partId, ok := pathId(c)
	if !ok {
		return
	}
	var input adjustInventoryRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, rec, err := models.AdjustInventory(c.Request.Context(), partId, input.NewQty, input.Reason, input.Notes)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": entry, "inventory": rec})
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, product)
}

func addBomItemHandler(c *gin.Context) {
	productId, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewBomItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := models.AddBomItem(c.Request.Context(), productId, &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func applyStockTransactionHandler(c *gin.Context) {
	var input models.NewStockTransaction
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, rec, err := models.ApplyStockTransaction(c.Request.Context(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": entry, "inventory": rec})
}

func deleteStockTransactionHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	entry, err := models.DeleteStockTransaction(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func reserveStockHandler(c *gin.Context) {
	var input models.NewReservation
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := models.ReserveStock(c.Request.Context(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type releaseStockRequest struct {
	PartId int             `json:"part_id" binding:"required"`
	Qty    decimal.Decimal `json:"qty" binding:"required"`
}

func releaseStockHandler(c *gin.Context) {
	var input releaseStockRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := models.ReleaseStock(c.Request.Context(), input.PartId, input.Qty)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func createSalesOrderHandler(c *gin.Context) {
	var input models.NewSalesOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	so, err := models.CreateSalesOrder(c.Request.Context(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, so)
}

func listSalesOrdersHandler(c *gin.Context) {
	orders, err := models.GetSalesOrders(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func listPurchaseOrdersHandler(c *gin.Context) {
	orders, err := models.GetPurchaseOrders(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func updateSalesOrderStatusHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input updateStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	so, err := models.UpdateSalesOrderStatus(c.Request.Context(), id, models.SalesOrderStatus(input.Status))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, so)
}

func createPurchaseOrderHandler(c *gin.Context) {
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	po, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, po)
}

type receiveItemsRequest struct {
	Items []models.ReceiveItemInput `json:"items" binding:"required,min=1,dive"`
}

func receivePurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input receiveItemsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	po, err := models.ReceivePurchaseOrderItems(c.Request.Context(), id, input.Items)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, po)
}

func runMrpHandler(c *gin.Context) {
	var input workflow.MrpRunInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	summary, err := workflow.CalculateMrp(c.Request.Context(), config.GetLogger(), &input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func listMrpResultsHandler(c *gin.Context) {
	filter := &models.MrpResultFilter{}
	if v := c.Query("part_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.PartId = &id
		}
	}
	if v := c.Query("sales_order_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.SalesOrderId = &id
		}
	}
	if v := c.Query("urgency"); v != "" {
		urgency := models.Urgency(v)
		filter.Urgency = &urgency
	}
	if v := c.Query("status"); v != "" {
		status := models.MrpResultStatus(v)
		filter.Status = &status
	}
	results, err := models.GetMrpResults(c.Request.Context(), filter)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

func updateMrpResultStatusHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input updateStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateMrpResultStatus(c.Request.Context(), id, models.MrpResultStatus(input.Status))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
