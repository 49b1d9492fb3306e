// internal/api/v2/points.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/africaresearchbase/arb/internal/datastore"
)

// initPointsRoutes registers the points balance and ledger endpoints.
func (c *Controller) initPointsRoutes() {
	c.Group.GET("/points", c.GetPointsBalance, c.AuthMiddleware())
	c.Group.GET("/points/transactions", c.GetPointsTransactions, c.AuthMiddleware())
}

type pointsTransactionResponse struct {
	ID          uint      `json:"id"`
	Amount      int       `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPointsTransactionResponse(t *datastore.PointsTransaction) pointsTransactionResponse {
	return pointsTransactionResponse{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
}

// GetPointsBalance returns the caller's current points balance.
func (c *Controller) GetPointsBalance(ctx echo.Context) error {
	user, err := c.DS.GetUser(c.requesterID(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Account not found", http.StatusNotFound)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"points":  user.Points,
	})
}

// GetPointsTransactions returns the caller's ledger entries, newest first.
func (c *Controller) GetPointsTransactions(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)

	entries, err := c.DS.GetPointsTransactions(c.requesterID(ctx), limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list points transactions", http.StatusInternalServerError)
	}

	items := make([]pointsTransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toPointsTransactionResponse(&entries[i]))
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"transactions": items,
		"limit":        limit,
		"offset":       offset,
	})
}
