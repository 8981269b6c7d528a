package httpserver

import (
	"fmt"
	"net/http"

	"shoporders/internal/domain"
	"github.com/gin-gonic/gin"
)

func listCartHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.Items(c.Request.Context(), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "cart", cartResponse(items))
	}
}

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func addCartItemHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in addCartItemRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			writeError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
		items, err := svc.Add(c.Request.Context(), currentUserID(c), in.ProductID, in.Quantity)
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusCreated, "item added", cartResponse(items))
	}
}

type changeCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func changeCartItemHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in changeCartItemRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			writeError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
		items, err := svc.ChangeQuantity(c.Request.Context(), currentUserID(c), c.Param("id"), in.Quantity)
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "item updated", cartResponse(items))
	}
}

func removeCartItemHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.Remove(c.Request.Context(), currentUserID(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		writeData(c, http.StatusOK, "item removed", cartResponse(items))
	}
}

func cartResponse(items []domain.CartItem) gin.H {
	if items == nil {
		items = []domain.CartItem{}
	}
	return gin.H{"items": items, "total": domain.CartTotal(items)}
}
