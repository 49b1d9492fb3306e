// internal/api/v2/mock_test.go
package api

import (
	"context"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/mock"

	"github.com/africaresearchbase/arb/internal/ai"
	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/events"
	"github.com/africaresearchbase/arb/internal/security"
)

// mockDataStore is a testify mock of datastore.Interface.
type mockDataStore struct {
	mock.Mock
}

func (m *mockDataStore) Open() error  { return m.Called().Error(0) }
func (m *mockDataStore) Close() error { return m.Called().Error(0) }

func (m *mockDataStore) CreateUser(user *datastore.User) error {
	return m.Called(user).Error(0)
}

func (m *mockDataStore) UpdateUser(user *datastore.User) error {
	return m.Called(user).Error(0)
}

func (m *mockDataStore) GetUser(id string) (datastore.User, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *mockDataStore) GetUserByEmail(email string) (datastore.User, error) {
	args := m.Called(email)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *mockDataStore) GetUserByAPIKeyHash(hash string) (datastore.User, error) {
	args := m.Called(hash)
	return args.Get(0).(datastore.User), args.Error(1)
}

func (m *mockDataStore) SaveDataset(dataset *datastore.Dataset) error {
	return m.Called(dataset).Error(0)
}

func (m *mockDataStore) GetDataset(id string) (datastore.Dataset, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.Dataset), args.Error(1)
}

func (m *mockDataStore) SearchDatasets(query, field string, limit, offset int) ([]datastore.Dataset, error) {
	args := m.Called(query, field, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Dataset), args.Error(1)
}

func (m *mockDataStore) SetChainSignature(datasetID, signature string) error {
	return m.Called(datasetID, signature).Error(0)
}

func (m *mockDataStore) GetReviews(datasetID string) ([]datastore.Review, error) {
	args := m.Called(datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Review), args.Error(1)
}

func (m *mockDataStore) AddReview(review *datastore.Review) (*datastore.ReviewOutcome, error) {
	args := m.Called(review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.ReviewOutcome), args.Error(1)
}

func (m *mockDataStore) AwardPoints(entry *datastore.PointsTransaction) error {
	return m.Called(entry).Error(0)
}

func (m *mockDataStore) GetPointsTransactions(userID string, limit, offset int) ([]datastore.PointsTransaction, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.PointsTransaction), args.Error(1)
}

// stubObjectStore records the last upload and returns fixed values.
type stubObjectStore struct {
	key     string
	url     string
	err     error
	gotName string
	gotSize int64
}

func (s *stubObjectStore) Upload(_ context.Context, reader io.Reader, filename, _ string, size int64) (string, string, error) {
	// Drain so the tee'd hash sees the full file, as minio would.
	_, _ = io.Copy(io.Discard, reader)
	s.gotName = filename
	s.gotSize = size
	return s.key, s.url, s.err
}

func (s *stubObjectStore) HealthCheck(context.Context) error { return nil }

// stubAnalyzer returns a fixed analysis or error.
type stubAnalyzer struct {
	analysis ai.Analysis
	err      error
}

func (s *stubAnalyzer) AnalyzeDataset(context.Context, ai.DatasetMetadata) (ai.Analysis, error) {
	return s.analysis, s.err
}

// stubChain returns a fixed signature or error.
type stubChain struct {
	signature string
	err       error
	calls     int
}

func (s *stubChain) RegisterDataset(context.Context, *datastore.Dataset) (string, error) {
	s.calls++
	return s.signature, s.err
}

// stubPublisher records published events.
type stubPublisher struct {
	uploaded []events.DatasetEvent
	verified []events.DatasetEvent
}

func (s *stubPublisher) PublishDatasetUploaded(_ context.Context, e events.DatasetEvent) error {
	s.uploaded = append(s.uploaded, e)
	return nil
}

func (s *stubPublisher) PublishDatasetVerified(_ context.Context, e events.DatasetEvent) error {
	s.verified = append(s.verified, e)
	return nil
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		WebServer: conf.WebServerSettings{Listen: ":0"},
		AI:        conf.AISettings{Enabled: true},
		Chain:     conf.ChainSettings{Enabled: true},
		Security:  conf.SecuritySettings{JWTSecret: "test-secret", TokenTTLHours: 1},
		RateLimit: conf.RateLimitSettings{Enabled: false, RPS: 1, Burst: 1},
	}
}

// newTestController builds a controller wired to the given mocks without
// touching the filesystem or registering routes.
func newTestController(ds datastore.Interface, settings *conf.Settings, opts ...Option) (*Controller, *echo.Echo) {
	e := echo.New()
	now := time.Now()
	c := &Controller{
		Echo:         e,
		DS:           ds,
		Settings:     settings,
		auth:         security.NewService(&settings.Security),
		logger:       log.New(io.Discard, "", 0),
		apiLogger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		datasetCache: cache.New(time.Minute, time.Minute),
		limiters:     cache.New(time.Minute, time.Minute),
		startTime:    &now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, e
}
