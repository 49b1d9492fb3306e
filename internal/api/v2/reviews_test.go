// internal/api/v2/reviews_test.go
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/africaresearchbase/arb/internal/datastore"
)

func reviewContext(e *echo.Echo, datasetID, reviewerID, body string) (echo.Context, *httptest.ResponseRecorder) {
	ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/datasets/"+datasetID+"/reviews", body)
	ctx.SetParamNames("id")
	ctx.SetParamValues(datasetID)
	ctx.Set(ctxUserID, reviewerID)
	return ctx, rec
}

func TestCreateReview(t *testing.T) {
	dataset := datastore.Dataset{ID: "d1", UploaderID: "uploader-1", Title: "Rainfall", IsPublic: true, AIConfidenceScore: 80}
	goodBody := `{"accuracy":5,"completeness":5,"relevance":5,"methodology":5,"recommendation":"approve","feedback":"Solid work."}`

	t.Run("aggregates and verifies", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(dataset, nil)
		verified := dataset
		verified.HumanReviewMean = 100
		verified.FinalScore = 92
		verified.IsVerified = true
		ds.On("AddReview", mock.MatchedBy(func(r *datastore.Review) bool {
			return r.ReviewerID == "reviewer-1" && r.HumanScore == 100
		})).Return(&datastore.ReviewOutcome{Dataset: verified, NewlyVerified: true}, nil)

		// reviewer reward plus the uploader's one-time verification bonus
		ds.On("AwardPoints", mock.MatchedBy(func(p *datastore.PointsTransaction) bool {
			return p.UserID == "reviewer-1" && p.Type == datastore.TxReviewReward && p.Amount == reviewerRewardPoints
		})).Return(nil).Once()
		ds.On("AwardPoints", mock.MatchedBy(func(p *datastore.PointsTransaction) bool {
			return p.UserID == "uploader-1" && p.Type == datastore.TxVerificationBonus
		})).Return(nil).Once()

		publisher := &stubPublisher{}
		c, e := newTestController(ds, testSettings(), WithEventPublisher(publisher))

		ctx, rec := reviewContext(e, "d1", "reviewer-1", goodBody)
		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusCreated, rec.Code)

		require.Len(t, publisher.verified, 1)
		assert.Equal(t, "d1", publisher.verified[0].DatasetID)
		assert.InDelta(t, 92.0, publisher.verified[0].FinalScore, 0.001)
		ds.AssertExpectations(t)
	})

	t.Run("rejects self-review", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(dataset, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "uploader-1", goodBody)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects duplicate review", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(dataset, nil)
		ds.On("AddReview", mock.Anything).Return(nil, datastore.ErrDuplicateReview)

		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "reviewer-1", goodBody)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects out-of-range ratings", func(t *testing.T) {
		ds := &mockDataStore{}
		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "reviewer-1",
			`{"accuracy":6,"completeness":5,"relevance":5,"methodology":5,"recommendation":"approve"}`)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown recommendation", func(t *testing.T) {
		ds := &mockDataStore{}
		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "reviewer-1",
			`{"accuracy":4,"completeness":4,"relevance":4,"methodology":4,"recommendation":"maybe"}`)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("404 for unknown dataset", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "missing").Return(datastore.Dataset{}, datastore.ErrDatasetNotFound)

		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "missing", "reviewer-1", goodBody)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("404 hides private dataset from strangers", func(t *testing.T) {
		private := dataset
		private.IsPublic = false
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(private, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "reviewer-1", goodBody)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("uploader still gets 403 on own private dataset", func(t *testing.T) {
		private := dataset
		private.IsPublic = false
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(private, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "uploader-1", goodBody)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no verification bonus below threshold", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(dataset, nil)
		updated := dataset
		updated.HumanReviewMean = 20
		updated.FinalScore = 44
		ds.On("AddReview", mock.Anything).
			Return(&datastore.ReviewOutcome{Dataset: updated, NewlyVerified: false}, nil)
		ds.On("AwardPoints", mock.MatchedBy(func(p *datastore.PointsTransaction) bool {
			return p.Type == datastore.TxReviewReward
		})).Return(nil).Once()

		c, e := newTestController(ds, testSettings())
		ctx, rec := reviewContext(e, "d1", "reviewer-1",
			`{"accuracy":1,"completeness":1,"relevance":1,"methodology":1,"recommendation":"reject"}`)

		require.NoError(t, c.CreateReview(ctx))
		assert.Equal(t, http.StatusCreated, rec.Code)
		ds.AssertExpectations(t)
		ds.AssertNumberOfCalls(t, "AwardPoints", 1)
	})
}

func TestListReviews(t *testing.T) {
	listContext := func(e *echo.Echo, datasetID string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/datasets/"+datasetID+"/reviews", http.NoBody)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)
		ctx.SetParamNames("id")
		ctx.SetParamValues(datasetID)
		return ctx, rec
	}

	t.Run("lists reviews for a public dataset", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(datastore.Dataset{ID: "d1", IsPublic: true}, nil)
		ds.On("GetReviews", "d1").Return([]datastore.Review{
			{ID: 1, DatasetID: "d1", ReviewerID: "r1", HumanScore: 80, Recommendation: datastore.RecommendApprove},
		}, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := listContext(e, "d1")

		require.NoError(t, c.ListReviews(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "approve")
	})

	t.Run("404 hides private dataset from strangers", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(datastore.Dataset{ID: "d1", UploaderID: "uploader-1"}, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := listContext(e, "d1")

		require.NoError(t, c.ListReviews(ctx))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		ds.AssertNotCalled(t, "GetReviews", "d1")
	})

	t.Run("uploader can list own private dataset reviews", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetDataset", "d1").Return(datastore.Dataset{ID: "d1", UploaderID: "uploader-1"}, nil)
		ds.On("GetReviews", "d1").Return([]datastore.Review{}, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := listContext(e, "d1")
		ctx.Set(ctxUserID, "uploader-1")

		require.NoError(t, c.ListReviews(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
