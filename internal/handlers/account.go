package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"krakenbot/internal/kraken"
	"krakenbot/internal/models"
	"krakenbot/internal/rest"
)

// AccountService is the private, read-only part of the Kraken client
type AccountService interface {
	Account(ctx context.Context) (*kraken.Account, error)
	Balance(ctx context.Context) (rest.Balances, error)
	OpenOrders(ctx context.Context) (rest.Orders, error)
	ClosedOrders(ctx context.Context, userref int64) (rest.Orders, error)
}

// AccountHandlers serve balances and orders
type AccountHandlers struct {
	account AccountService
}

// NewAccountHandlers creates new account handlers
func NewAccountHandlers(account AccountService) *AccountHandlers {
	return &AccountHandlers{account: account}
}

// Account returns balances together with the open orders
func (h *AccountHandlers) Account() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.account.Account(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewAccountResponse(account.Balances, account.OpenOrders))
	}
}

// Balance returns the non-zero balances
func (h *AccountHandlers) Balance() gin.HandlerFunc {
	return func(c *gin.Context) {
		balances, err := h.account.Balance(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if balances == nil {
			balances = rest.Balances{}
		}

		c.JSON(http.StatusOK, models.BalanceResponse{Balances: balances, Count: len(balances)})
	}
}

// OpenOrders returns the working orders
func (h *AccountHandlers) OpenOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.account.OpenOrders(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewOrdersResponse(orders))
	}
}

// ClosedOrders returns closed orders, optionally filtered by userref
func (h *AccountHandlers) ClosedOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.ClosedOrdersQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondValidation(c, err)
			return
		}

		orders, err := h.account.ClosedOrders(c.Request.Context(), q.UserRef)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewOrdersResponse(orders))
	}
}
