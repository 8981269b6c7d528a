package httpserver

import (
	"net/http"

	paymentsvc "shoporders/internal/service/payment"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func createPaymentHandler(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.CreateTransaction(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusCreated, "payment session", sess)
	}
}

func retryPaymentHandler(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.RetryTransaction(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusCreated, "payment session", sess)
	}
}

func paymentStatusHandler(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.PollAndReconcile(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, rec.Message, rec.Order)
	}
}

// webhookHandler always answers 200 so the gateway stops retrying. A payload
// that fails verification is acknowledged, logged, and dropped.
func webhookHandler(svc PaymentService, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p paymentsvc.WebhookPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			logger.Warn().Err(err).Msg("unreadable webhook payload")
			writeData(c, http.StatusOK, "ignored", nil)
			return
		}
		if err := svc.HandleWebhook(c.Request.Context(), p); err != nil {
			logger.Warn().Err(err).Str("gateway_order_id", p.OrderID).Msg("webhook dropped")
			writeData(c, http.StatusOK, "ignored", nil)
			return
		}
		writeData(c, http.StatusOK, "ok", nil)
	}
}
