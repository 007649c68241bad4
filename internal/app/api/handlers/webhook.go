package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	nh "github.com/fatflowers/storepay/internal/app/service/notification_handler"
	"github.com/fatflowers/storepay/pkg/types"
)

// Webhooks answer with the provider's own ack body rather than the API envelope.

// @Summary      M-PESA STK Callback
// @Description  Daraja posts the STK push outcome here.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        token query string false "Callback token"
// @Success      200  {object}  notification_handler.MpesaAck
// @Router       /api/v1/payment/webhook/mpesa [post]
func ApiMpesaWebhook(h *nh.NotificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ack, _ := h.HandleNotification(c, types.PaymentProviderMpesa)
		c.JSON(http.StatusOK, ack)
	}
}

// @Summary      Pesapal IPN
// @Description  Pesapal notifies here by GET or POST; the status is then queried from Pesapal.
// @Tags         Webhook
// @Produce      json
// @Param        OrderTrackingId query string false "Order tracking id (GET)"
// @Param        OrderMerchantReference query string false "Merchant reference (GET)"
// @Param        OrderNotificationType query string false "Notification type (GET)"
// @Success      200  {object}  pesapal.IPNAck
// @Router       /api/v1/payment/webhook/pesapal [post]
// @Router       /api/v1/payment/webhook/pesapal [get]
func ApiPesapalWebhook(h *nh.NotificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ack, _ := h.HandleNotification(c, types.PaymentProviderPesapal)
		c.JSON(http.StatusOK, ack)
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *nh.NotificationHandler) {
	r.POST("/mpesa", ApiMpesaWebhook(h))
	r.GET("/pesapal", ApiPesapalWebhook(h))
	r.POST("/pesapal", ApiPesapalWebhook(h))
}
