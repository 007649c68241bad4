package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/app/service/statistics"
	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/response"
	"github.com/fatflowers/storepay/pkg/types"
)

// errorCode maps service errors onto envelope codes; anything unknown is APIResponseCodeError.
func errorCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, payment.ErrInvalidRequest),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, reconcile.ErrInvalidOutcome),
		errors.Is(err, statistics.ErrInvalidRequest),
		errors.Is(err, types.ErrUnknownEnumValue):
		return response.APIResponseCodeBadRequest
	case errors.Is(err, payment.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, reconcile.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, payment.ErrPaymentInProgress),
		errors.Is(err, payment.ErrOrderAlreadyPaid),
		errors.Is(err, order.ErrOrderArchived),
		errors.Is(err, reconcile.ErrInvalidTransition),
		errors.Is(err, reconcile.ErrConflict):
		return response.APIResponseCodeConflict
	case errors.Is(err, payment.ErrSubmissionFailed):
		return response.APIResponseCodeUpstream
	default:
		return response.APIResponseCodeError
	}
}

func respondError(c *gin.Context, err error) {
	code := errorCode(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, zap.S()).Errorw("request_failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
}
