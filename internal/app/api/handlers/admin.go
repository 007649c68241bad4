package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/app/service/statistics"
	"github.com/fatflowers/storepay/pkg/response"
)

type ArchiveOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// @Summary      List Transactions (Admin)
// @Description  Retrieves a paginated and filterable list of payment transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payment.ScanTransactionsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListTransactions
// @Router       /api/v1/admin/list_transactions [post]
func ApiListTransactions(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ScanTransactionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanTransactions(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Override Transaction Status (Admin)
// @Description  Moves a transaction to any status, including out of a terminal one. Operator and reason are recorded.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body reconcile.OverrideRequest true "Override"
// @Success      200  {object}  handlers.RespReconcileResult
// @Router       /api/v1/admin/override_transaction_status [post]
func ApiOverrideTransactionStatus(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reconcile.OverrideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.Override(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Run Reconciliation (Admin)
// @Description  Runs one sweep over stale pending transactions.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespSweepReport
// @Router       /api/v1/admin/reconcile [post]
func ApiReconcile(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Sweep(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// @Summary      Repair Stored Statuses (Admin)
// @Description  Rewrites status values stored in non-canonical case to the canonical uppercase form.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespRepairReport
// @Router       /api/v1/admin/repair_statuses [post]
func ApiRepairStatuses(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.RepairStatuses(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// @Summary      Archive Order (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ArchiveOrderRequest true "Order"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/admin/archive_order [post]
func ApiArchiveOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ArchiveOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		o, err := svc.Archive(c.Request.Context(), req.OrderID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(o))
	}
}

// @Summary      Get Payment Statistics (Admin)
// @Description  Retrieves daily payment statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.PaymentStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespPaymentStatistic
// @Router       /api/v1/admin/get_payment_statistic [post]
func ApiGetPaymentStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.PaymentStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetDailyPaymentStatistic(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// AdminDeps groups what the admin routes need.
type AdminDeps struct {
	Payments  *payment.Service
	Reconcile *reconcile.Service
	Orders    *order.Service
	Stats     *statistics.Service
}

func RegisterAdminRoutes(r gin.IRouter, d AdminDeps) {
	r.POST("/list_transactions", ApiListTransactions(d.Payments))
	r.POST("/override_transaction_status", ApiOverrideTransactionStatus(d.Reconcile))
	r.POST("/reconcile", ApiReconcile(d.Reconcile))
	r.POST("/repair_statuses", ApiRepairStatuses(d.Reconcile))
	r.POST("/archive_order", ApiArchiveOrder(d.Orders))
	r.POST("/get_payment_statistic", ApiGetPaymentStatistic(d.Stats))
}
