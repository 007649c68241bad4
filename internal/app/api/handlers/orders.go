package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/pkg/response"
	"github.com/fatflowers/storepay/pkg/types"
)

type BindPaymentRequest struct {
	TempOrderRef string `json:"temp_order_ref" binding:"required"`
}

// @Summary      Create Order
// @Description  Creates an order. The phone is normalised and the total truncated to whole units.
// @Tags         Order
// @Accept       json
// @Produce      json
// @Param        request body order.CreateOrderRequest true "Order"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders [post]
func ApiCreateOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		o, err := svc.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(o))
	}
}

// @Summary      Get Order
// @Tags         Order
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders/{id} [get]
func ApiGetOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(o))
	}
}

// @Summary      Bind Payment
// @Description  Attaches transactions paid against a temporary reference to the order, and carries their outcome over.
// @Tags         Order
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body BindPaymentRequest true "Temporary reference"
// @Success      200  {object}  handlers.RespBindPayment
// @Router       /api/v1/orders/{id}/bind_payment [post]
func ApiBindPayment(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BindPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.BindTempRef(c.Request.Context(), c.Param("id"), req.TempOrderRef)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Order Transactions
// @Description  Lists the payment attempts for an order, newest first by default.
// @Tags         Order
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        from query int false "Offset"
// @Param        size query int false "Page size"
// @Param        sort_by query string false "created_at | updated_at | completed_at | amount | status"
// @Param        sort_order query string false "asc | desc"
// @Success      200  {object}  handlers.RespListTransactions
// @Router       /api/v1/orders/{id}/transactions [get]
func ApiOrderTransactionList(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		from := 0
		if v := c.Query("from"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				from = n
			}
		}
		size := 100
		if v := c.Query("size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				size = n
			} else {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid size"))
				return
			}
		}
		sortOrder := c.Query("sort_order")
		if sortOrder != "asc" && sortOrder != "desc" {
			sortOrder = "desc"
		}

		req := &payment.ScanTransactionsRequest{
			Filters:   []*types.CommonFilter{{Field: "order_id", Operator: types.CommonFilterOperatorEq, Values: []any{c.Param("id")}}},
			From:      from,
			Size:      size,
			SortBy:    c.Query("sort_by"),
			SortOrder: sortOrder,
		}
		res, err := svc.ScanTransactions(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterOrderRoutes(r gin.IRouter, orders *order.Service, payments *payment.Service) {
	r.POST("", ApiCreateOrder(orders))
	r.GET("/:id", ApiGetOrder(orders))
	r.POST("/:id/bind_payment", ApiBindPayment(orders))
	r.GET("/:id/transactions", ApiOrderTransactionList(payments))
}
