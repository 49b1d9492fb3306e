// internal/api/v2/chain.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/errors"
)

// initChainRoutes registers the explicit on-chain registration endpoint.
func (c *Controller) initChainRoutes() {
	c.Group.POST("/datasets/:id/register", c.RegisterDatasetOnChain, c.AuthMiddleware(), c.RateLimitMiddleware())
}

// RegisterDatasetOnChain submits a dataset's metadata on chain at the
// uploader's explicit request. Unlike the hook that runs on upload,
// failures here are surfaced to the caller.
func (c *Controller) RegisterDatasetOnChain(ctx echo.Context) error {
	if c.chain == nil || !c.Settings.Chain.Enabled {
		return c.HandleError(ctx, nil, "On-chain registration is not enabled", http.StatusBadRequest)
	}

	datasetID := ctx.Param("id")

	dataset, err := c.DS.GetDataset(datasetID)
	if err != nil {
		if errors.Is(err, datastore.ErrDatasetNotFound) {
			return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	if dataset.UploaderID != c.requesterID(ctx) {
		return c.HandleError(ctx, nil, "Only the uploader can register a dataset", http.StatusForbidden)
	}
	if dataset.ChainSignature != "" {
		return c.HandleError(ctx, nil, "Dataset is already registered on chain", http.StatusConflict)
	}

	signature, err := c.chain.RegisterDataset(ctx.Request().Context(), &dataset)
	if err != nil {
		if c.metrics != nil {
			c.metrics.Dataset.ChainRegistrations.WithLabelValues("error").Inc()
		}
		if errors.IsValidation(err) {
			return c.HandleError(ctx, err, "Dataset metadata exceeds on-chain limits", http.StatusUnprocessableEntity)
		}
		return c.HandleError(ctx, err, "On-chain registration failed", http.StatusInternalServerError)
	}

	if err := c.DS.SetChainSignature(dataset.ID, signature); err != nil {
		return c.HandleError(ctx, err, "Failed to record chain signature", http.StatusInternalServerError)
	}
	if c.metrics != nil {
		c.metrics.Dataset.ChainRegistrations.WithLabelValues("ok").Inc()
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"signature": signature,
	})
}
