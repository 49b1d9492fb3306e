// internal/api/v2/reviews.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/errors"
	"github.com/africaresearchbase/arb/internal/events"
	"github.com/africaresearchbase/arb/internal/scoring"
)

// reviewerRewardPoints is the flat reward for submitting a review.
const reviewerRewardPoints = 10

// initReviewRoutes registers review submission and listing.
func (c *Controller) initReviewRoutes() {
	c.Group.GET("/datasets/:id/reviews", c.ListReviews)
	c.Group.POST("/datasets/:id/reviews", c.CreateReview, c.AuthMiddleware(), c.RateLimitMiddleware())
}

type reviewRequest struct {
	Accuracy       int    `json:"accuracy"`
	Completeness   int    `json:"completeness"`
	Relevance      int    `json:"relevance"`
	Methodology    int    `json:"methodology"`
	Feedback       string `json:"feedback"`
	Recommendation string `json:"recommendation"`
}

type reviewResponse struct {
	ID             uint      `json:"id"`
	DatasetID      string    `json:"dataset_id"`
	ReviewerID     string    `json:"reviewer_id"`
	Accuracy       int       `json:"accuracy"`
	Completeness   int       `json:"completeness"`
	Relevance      int       `json:"relevance"`
	Methodology    int       `json:"methodology"`
	HumanScore     float64   `json:"human_score"`
	Feedback       string    `json:"feedback"`
	Recommendation string    `json:"recommendation"`
	CreatedAt      time.Time `json:"created_at"`
}

func toReviewResponse(r *datastore.Review) reviewResponse {
	return reviewResponse{
		ID:             r.ID,
		DatasetID:      r.DatasetID,
		ReviewerID:     r.ReviewerID,
		Accuracy:       r.Accuracy,
		Completeness:   r.Completeness,
		Relevance:      r.Relevance,
		Methodology:    r.Methodology,
		HumanScore:     r.HumanScore,
		Feedback:       r.Feedback,
		Recommendation: r.Recommendation,
		CreatedAt:      r.CreatedAt,
	}
}

func validRecommendation(r string) bool {
	switch r {
	case datastore.RecommendApprove, datastore.RecommendReject, datastore.RecommendNeedsImprovement:
		return true
	}
	return false
}

// CreateReview records a reviewer's assessment and recomputes the
// dataset's aggregate score. On the first crossing of the verification
// threshold the uploader receives a one-time bonus; the reviewer always
// receives a flat reward. Both awards are logged and swallowed on
// failure.
func (c *Controller) CreateReview(ctx echo.Context) error {
	datasetID := ctx.Param("id")
	reviewerID := c.requesterID(ctx)

	var req reviewRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	ratings := scoring.Ratings{
		Accuracy:     req.Accuracy,
		Completeness: req.Completeness,
		Relevance:    req.Relevance,
		Methodology:  req.Methodology,
	}
	humanScore, err := ratings.HumanScore()
	if err != nil {
		return c.HandleError(ctx, err, "Ratings must be between 1 and 5", http.StatusBadRequest)
	}
	if !validRecommendation(req.Recommendation) {
		return c.HandleError(ctx, nil, "Recommendation must be approve, reject or needs_improvement", http.StatusBadRequest)
	}

	dataset, err := c.DS.GetDataset(datasetID)
	if err != nil {
		if errors.Is(err, datastore.ErrDatasetNotFound) {
			return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}
	// Same hiding rule as GetDataset: private datasets do not exist for
	// anyone but their uploader.
	if !dataset.IsPublic && dataset.UploaderID != reviewerID {
		return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
	}
	if dataset.UploaderID == reviewerID {
		return c.HandleError(ctx, nil, "You cannot review your own dataset", http.StatusForbidden)
	}

	review := &datastore.Review{
		DatasetID:      datasetID,
		ReviewerID:     reviewerID,
		Accuracy:       req.Accuracy,
		Completeness:   req.Completeness,
		Relevance:      req.Relevance,
		Methodology:    req.Methodology,
		HumanScore:     humanScore,
		Feedback:       req.Feedback,
		Recommendation: req.Recommendation,
	}

	outcome, err := c.DS.AddReview(review)
	if err != nil {
		switch {
		case errors.Is(err, datastore.ErrDuplicateReview):
			return c.HandleError(ctx, nil, "You have already reviewed this dataset", http.StatusConflict)
		case errors.Is(err, datastore.ErrDatasetNotFound):
			return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Failed to save review", http.StatusInternalServerError)
		}
	}

	if c.metrics != nil {
		c.metrics.Dataset.ReviewsTotal.WithLabelValues(req.Recommendation).Inc()
	}

	c.awardPoints(&datastore.PointsTransaction{
		UserID:      reviewerID,
		Amount:      reviewerRewardPoints,
		Type:        datastore.TxReviewReward,
		Description: "Dataset review reward",
		Metadata:    fmt.Sprintf(`{"dataset_id":%q}`, datasetID),
	})

	if outcome.NewlyVerified {
		c.onDatasetVerified(ctx, &outcome.Dataset)
	}

	c.datasetCache.Flush()

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"review":  toReviewResponse(review),
		"dataset": toDatasetResponse(&outcome.Dataset),
	})
}

// onDatasetVerified handles the one-time side effects of a dataset
// crossing the verification threshold.
func (c *Controller) onDatasetVerified(ctx echo.Context, dataset *datastore.Dataset) {
	if c.metrics != nil {
		c.metrics.Dataset.VerificationsTotal.Inc()
	}

	c.awardPoints(&datastore.PointsTransaction{
		UserID:      dataset.UploaderID,
		Amount:      scoring.PointsForScore(int(dataset.FinalScore)),
		Type:        datastore.TxVerificationBonus,
		Description: "Dataset verification bonus",
		Metadata:    fmt.Sprintf(`{"dataset_id":%q}`, dataset.ID),
	})

	if c.events != nil {
		if err := c.events.PublishDatasetVerified(ctx.Request().Context(), events.DatasetEvent{
			DatasetID:     dataset.ID,
			UploaderID:    dataset.UploaderID,
			Title:         dataset.Title,
			ResearchField: dataset.ResearchField,
			FinalScore:    dataset.FinalScore,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			c.apiLogger.Warn("failed to publish verification event", "dataset_id", dataset.ID, "error", err)
		}
	}
}

// ListReviews returns all reviews for a dataset.
func (c *Controller) ListReviews(ctx echo.Context) error {
	datasetID := ctx.Param("id")

	dataset, err := c.DS.GetDataset(datasetID)
	if err != nil {
		if errors.Is(err, datastore.ErrDatasetNotFound) {
			return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}
	if !dataset.IsPublic && c.optionalRequesterID(ctx) != dataset.UploaderID {
		return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
	}

	reviews, err := c.DS.GetReviews(datasetID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list reviews", http.StatusInternalServerError)
	}

	items := make([]reviewResponse, 0, len(reviews))
	for i := range reviews {
		items = append(items, toReviewResponse(&reviews[i]))
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"reviews": items,
	})
}
