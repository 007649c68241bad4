package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/pkg/response"
)

// respondInitiate reports a failed submission with the transaction still attached, so the
// client can poll it instead of starting over.
func respondInitiate(c *gin.Context, res *payment.InitiateResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, response.OKT(res))
		return
	}
	if errors.Is(err, payment.ErrSubmissionFailed) && res != nil {
		c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeUpstream, res))
		return
	}
	respondError(c, err)
}

// @Summary      Initiate M-PESA STK Push
// @Description  Reserves the single pending transaction for the order and prompts the payer's phone.
// @Description  A second request while one is pending answers 40900.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body payment.InitiateRequest true "Payment request"
// @Success      200  {object}  handlers.RespInitiate
// @Router       /api/v1/payment/mpesa/stk_push [post]
func ApiStkPush(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.InitiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.InitiateStkPush(c.Request.Context(), &req)
		respondInitiate(c, res, err)
	}
}

// @Summary      Initiate Pesapal Checkout
// @Description  Reserves the single pending transaction for the order and returns the hosted payment page.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body payment.InitiateRequest true "Payment request"
// @Success      200  {object}  handlers.RespInitiate
// @Router       /api/v1/payment/pesapal/checkout [post]
func ApiPesapalCheckout(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.InitiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.InitiatePesapalCheckout(c.Request.Context(), &req)
		respondInitiate(c, res, err)
	}
}

// @Summary      Get Transaction
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespTransaction
// @Router       /api/v1/payment/transactions/{id} [get]
func ApiGetTransaction(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn, err := svc.GetTransaction(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(txn))
	}
}

// @Summary      Issue Temporary Order Reference
// @Description  Returns a TMP- reference for paying before the order is created.
// @Tags         Payment
// @Produce      json
// @Success      200  {object}  handlers.RespTempRef
// @Router       /api/v1/payment/temp_ref [post]
func ApiIssueTempRef(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(svc.IssueTempRef(c.Request.Context())))
	}
}

// RegisterPaymentRoutes mounts the customer payment API. limit guards the routes that reach a gateway.
func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service, limit gin.HandlerFunc) {
	r.POST("/mpesa/stk_push", limit, ApiStkPush(svc))
	r.POST("/pesapal/checkout", limit, ApiPesapalCheckout(svc))
	r.GET("/transactions/:id", ApiGetTransaction(svc))
	r.POST("/temp_ref", ApiIssueTempRef(svc))
}
