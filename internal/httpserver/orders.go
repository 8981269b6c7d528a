package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"shoporders/internal/domain"
	ordersvc "shoporders/internal/service/order"
	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

func checkoutHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ordersvc.CheckoutInput
		if err := c.ShouldBindJSON(&in); err != nil {
			writeError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
		o, err := svc.Checkout(c.Request.Context(), currentUserID(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusCreated, "order created", o)
	}
}

func listMyOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListMine(c.Request.Context(), currentUserID(c), c.Query("status"), listLimit(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "orders", orders)
	}
}

func getOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.GetByID(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "order", o)
	}
}

func cancelOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Cancel(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "order cancelled", o)
	}
}

func listShopOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListForSeller(c.Request.Context(), currentUserID(c), c.Query("status"), listLimit(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "orders", orders)
	}
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func updateStatusHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in updateStatusRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			writeError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
		o, err := svc.UpdateStatusBySeller(c.Request.Context(), c.Param("id"), currentUserID(c), in.Status)
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "order status updated", o)
	}
}

type confirmPaymentRequest struct {
	Notes          string   `json:"notes"`
	ProofImageURLs []string `json:"proofImageUrls"`
}

func confirmPaymentHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in confirmPaymentRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			writeError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
		o, err := svc.ConfirmPayAtStorePayment(c.Request.Context(), c.Param("id"), currentUserID(c), in.Notes, in.ProofImageURLs)
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "payment confirmed", o)
	}
}

func listLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 200 {
		return defaultListLimit
	}
	return n
}
