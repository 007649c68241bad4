package handlers

import (
	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/app/service/statistics"
	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/pkg/response"
)

// These mirror response.APIResponse[T] with concrete data types for swag, which cannot
// resolve generic instantiations.

type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespOrder struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Order             `json:"data"`
}

type RespBindPayment struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    order.BindResult         `json:"data"`
}

type RespInitiate struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.InitiateResult   `json:"data"`
}

type RespTransaction struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Transaction       `json:"data"`
}

type RespTempRef struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.TempRefResult    `json:"data"`
}

type RespListTransactions struct {
	Code    response.APIResponseCode         `json:"code"`
	Message string                           `json:"message"`
	Data    payment.ScanTransactionsResponse `json:"data"`
}

type RespReconcileResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.Result         `json:"data"`
}

type RespSweepReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.SweepReport    `json:"data"`
}

type RespRepairReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.RepairReport   `json:"data"`
}

type RespPaymentStatistic struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    statistics.PaymentStatisticResponse `json:"data"`
}
