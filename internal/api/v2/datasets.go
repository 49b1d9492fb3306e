// internal/api/v2/datasets.go
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/africaresearchbase/arb/internal/ai"
	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/errors"
	"github.com/africaresearchbase/arb/internal/events"
	"github.com/africaresearchbase/arb/internal/scoring"
)

const (
	maxUploadBytes   = 104_857_600 // 100 MiB, matches the on-chain limit
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// initDatasetRoutes registers dataset listing, retrieval and upload.
func (c *Controller) initDatasetRoutes() {
	c.Group.GET("/datasets", c.ListDatasets)
	c.Group.GET("/datasets/:id", c.GetDataset)
	c.Group.POST("/datasets", c.UploadDataset, c.AuthMiddleware(), c.RateLimitMiddleware())
}

type datasetResponse struct {
	ID                string     `json:"id"`
	UploaderID        string     `json:"uploader_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	ResearchField     string     `json:"research_field"`
	Tags              []string   `json:"tags"`
	FileName          string     `json:"file_name"`
	FileSize          int64      `json:"file_size"`
	ContentType       string     `json:"content_type"`
	FileURL           string     `json:"file_url"`
	ContentHash       string     `json:"content_hash"`
	RowCount          int        `json:"row_count"`
	ColumnCount       int        `json:"column_count"`
	AIConfidenceScore int        `json:"ai_confidence_score"`
	AIAnalysis        string     `json:"ai_analysis"`
	HumanReviewMean   float64    `json:"human_review_mean"`
	FinalScore        float64    `json:"final_score"`
	ReviewCount       int        `json:"review_count"`
	IsPublic          bool       `json:"is_public"`
	IsVerified        bool       `json:"is_verified"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	ChainSignature    string     `json:"chain_signature,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toDatasetResponse(d *datastore.Dataset) datasetResponse {
	var tags []string
	if d.Tags != "" {
		tags = strings.Split(d.Tags, ",")
	}
	return datasetResponse{
		ID:                d.ID,
		UploaderID:        d.UploaderID,
		Title:             d.Title,
		Description:       d.Description,
		ResearchField:     d.ResearchField,
		Tags:              tags,
		FileName:          d.FileName,
		FileSize:          d.FileSize,
		ContentType:       d.ContentType,
		FileURL:           d.FileURL,
		ContentHash:       d.ContentHash,
		RowCount:          d.RowCount,
		ColumnCount:       d.ColumnCount,
		AIConfidenceScore: d.AIConfidenceScore,
		AIAnalysis:        d.AIAnalysis,
		HumanReviewMean:   d.HumanReviewMean,
		FinalScore:        d.FinalScore,
		ReviewCount:       d.ReviewCount,
		IsPublic:          d.IsPublic,
		IsVerified:        d.IsVerified,
		VerifiedAt:        d.VerifiedAt,
		ChainSignature:    d.ChainSignature,
		CreatedAt:         d.CreatedAt,
	}
}

// parsePagination reads limit/offset query params with sane bounds.
func parsePagination(ctx echo.Context) (limit, offset int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// ListDatasets returns public datasets, optionally filtered by a search
// query and research field. Results are served through a short-lived
// cache keyed by the full query.
func (c *Controller) ListDatasets(ctx echo.Context) error {
	query := ctx.QueryParam("q")
	field := ctx.QueryParam("field")
	limit, offset := parsePagination(ctx)

	cacheKey := fmt.Sprintf("datasets:%s:%s:%d:%d", query, field, limit, offset)
	if cached, found := c.datasetCache.Get(cacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	datasets, err := c.DS.SearchDatasets(query, field, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list datasets", http.StatusInternalServerError)
	}

	items := make([]datasetResponse, 0, len(datasets))
	for i := range datasets {
		items = append(items, toDatasetResponse(&datasets[i]))
	}

	response := map[string]any{
		"success":  true,
		"datasets": items,
		"limit":    limit,
		"offset":   offset,
	}
	c.datasetCache.SetDefault(cacheKey, response)

	return ctx.JSON(http.StatusOK, response)
}

// GetDataset returns a single dataset. Non-public datasets are only
// visible to their uploader; everyone else gets a 404 so existence is
// not leaked.
func (c *Controller) GetDataset(ctx echo.Context) error {
	id := ctx.Param("id")

	dataset, err := c.DS.GetDataset(id)
	if err != nil {
		if errors.Is(err, datastore.ErrDatasetNotFound) {
			return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	if !dataset.IsPublic && c.optionalRequesterID(ctx) != dataset.UploaderID {
		return c.HandleError(ctx, nil, "Dataset not found", http.StatusNotFound)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"dataset": toDatasetResponse(&dataset),
	})
}

// UploadDataset accepts a multipart dataset upload, stores the file,
// scores it and persists the record. AI analysis failures fall back to
// the heuristic scorer so the upload still succeeds; points, chain
// registration and event publication failures are logged and never fail
// the request.
func (c *Controller) UploadDataset(ctx echo.Context) error {
	userID := c.requesterID(ctx)

	title := strings.TrimSpace(ctx.FormValue("title"))
	if title == "" {
		return c.HandleError(ctx, nil, "Title is required", http.StatusBadRequest)
	}
	description := strings.TrimSpace(ctx.FormValue("description"))
	researchField := strings.TrimSpace(ctx.FormValue("research_field"))
	tags := parseTags(ctx.FormValue("tags"))
	rowCount, _ := strconv.Atoi(ctx.FormValue("row_count"))
	columnCount, _ := strconv.Atoi(ctx.FormValue("column_count"))

	isPublic := true
	if v := ctx.FormValue("is_public"); v != "" {
		isPublic, _ = strconv.ParseBool(v)
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, nil, "A dataset file is required", http.StatusBadRequest)
	}
	if fileHeader.Size > maxUploadBytes {
		return c.HandleError(ctx, nil, "File exceeds the 100 MiB limit", http.StatusBadRequest)
	}

	if c.objectStore == nil {
		return c.HandleError(ctx, nil, "File storage is not configured", http.StatusInternalServerError)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusInternalServerError)
	}
	defer func() { _ = src.Close() }()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Hash while streaming to the object store, single pass over the file.
	hasher := sha256.New()
	reader := io.TeeReader(src, hasher)

	objectKey, fileURL, err := c.objectStore.Upload(ctx.Request().Context(),
		reader, fileHeader.Filename, contentType, fileHeader.Size)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to store dataset file", http.StatusInternalServerError)
	}
	contentHash := hex.EncodeToString(hasher.Sum(nil))

	confidence, analysisText := c.scoreDataset(ctx.Request().Context(), ai.DatasetMetadata{
		Title:         title,
		Description:   description,
		ResearchField: researchField,
		Tags:          tags,
		FileName:      fileHeader.Filename,
		RowCount:      rowCount,
		ColumnCount:   columnCount,
	})

	dataset := &datastore.Dataset{
		ID:                uuid.NewString(),
		UploaderID:        userID,
		Title:             title,
		Description:       description,
		ResearchField:     researchField,
		Tags:              strings.Join(tags, ","),
		FileName:          fileHeader.Filename,
		FileSize:          fileHeader.Size,
		ContentType:       contentType,
		FileURL:           fileURL,
		ObjectKey:         objectKey,
		ContentHash:       contentHash,
		RowCount:          rowCount,
		ColumnCount:       columnCount,
		AIConfidenceScore: confidence,
		AIAnalysis:        analysisText,
		IsPublic:          isPublic,
	}
	if err := c.DS.SaveDataset(dataset); err != nil {
		return c.HandleError(ctx, err, "Failed to save dataset", http.StatusInternalServerError)
	}

	if c.metrics != nil {
		c.metrics.Dataset.UploadsTotal.WithLabelValues(researchField).Inc()
		c.metrics.Dataset.UploadBytesTotal.Add(float64(fileHeader.Size))
	}

	c.awardPoints(&datastore.PointsTransaction{
		UserID:      userID,
		Amount:      scoring.PointsForScore(confidence),
		Type:        datastore.TxUploadReward,
		Description: "Dataset upload reward",
		Metadata:    fmt.Sprintf(`{"dataset_id":%q}`, dataset.ID),
	})

	c.registerOnChain(ctx.Request().Context(), dataset)

	if c.events != nil {
		if err := c.events.PublishDatasetUploaded(ctx.Request().Context(), events.DatasetEvent{
			DatasetID:     dataset.ID,
			UploaderID:    dataset.UploaderID,
			Title:         dataset.Title,
			ResearchField: dataset.ResearchField,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			c.apiLogger.Warn("failed to publish upload event", "dataset_id", dataset.ID, "error", err)
		}
	}

	c.datasetCache.Flush()

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"dataset": toDatasetResponse(dataset),
	})
}

// scoreDataset runs the AI analysis, falling back to the heuristic
// scorer when the analyzer is unavailable or fails.
func (c *Controller) scoreDataset(ctx context.Context, meta ai.DatasetMetadata) (confidence int, analysisText string) {
	if c.analyzer != nil && c.Settings.AI.Enabled {
		start := time.Now()
		analysis, err := c.analyzer.AnalyzeDataset(ctx, meta)
		if c.metrics != nil {
			c.metrics.Dataset.AIAnalysisDuration.Observe(time.Since(start).Seconds())
		}
		if err == nil {
			if c.metrics != nil {
				c.metrics.Dataset.AIAnalysisTotal.WithLabelValues("ok").Inc()
			}
			return analysis.ConfidenceScore, analysis.Summary
		}
		c.apiLogger.Warn("AI analysis failed, using heuristic score",
			"title", meta.Title, "error", err)
		if c.metrics != nil {
			c.metrics.Dataset.AIAnalysisTotal.WithLabelValues("error").Inc()
		}
	} else if c.metrics != nil {
		c.metrics.Dataset.AIAnalysisTotal.WithLabelValues("fallback").Inc()
	}

	score := scoring.HeuristicScore(meta.Title, meta.Description, meta.RowCount, meta.ColumnCount)
	return score, "Automated heuristic assessment based on dataset metadata completeness."
}

// awardPoints appends a ledger entry, logging failures without
// surfacing them. An upload or review must not fail because its reward
// could not be recorded.
func (c *Controller) awardPoints(entry *datastore.PointsTransaction) {
	if err := c.DS.AwardPoints(entry); err != nil {
		c.apiLogger.Error("failed to award points",
			"user_id", entry.UserID,
			"type", entry.Type,
			"amount", entry.Amount,
			"error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.Dataset.PointsAwarded.WithLabelValues(entry.Type).Add(float64(entry.Amount))
	}
}

// registerOnChain submits the dataset to the chain when enabled,
// logging failures without surfacing them.
func (c *Controller) registerOnChain(ctx context.Context, dataset *datastore.Dataset) {
	if c.chain == nil || !c.Settings.Chain.Enabled {
		return
	}

	signature, err := c.chain.RegisterDataset(ctx, dataset)
	if err != nil {
		c.apiLogger.Warn("on-chain registration failed", "dataset_id", dataset.ID, "error", err)
		if c.metrics != nil {
			c.metrics.Dataset.ChainRegistrations.WithLabelValues("error").Inc()
		}
		return
	}
	if err := c.DS.SetChainSignature(dataset.ID, signature); err != nil {
		c.apiLogger.Error("failed to record chain signature", "dataset_id", dataset.ID, "error", err)
		return
	}
	dataset.ChainSignature = signature
	if c.metrics != nil {
		c.metrics.Dataset.ChainRegistrations.WithLabelValues("ok").Inc()
	}
}

// parseTags splits a comma separated tag list, dropping empty entries.
func parseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
