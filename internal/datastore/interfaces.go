// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/errors"
	"github.com/africaresearchbase/arb/internal/scoring"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Sentinel errors for expected conditions.
var (
	ErrUserNotFound    = errors.NewStd("user not found")
	ErrDatasetNotFound = errors.NewStd("dataset not found")
	ErrDuplicateReview = errors.NewStd("reviewer has already reviewed this dataset")
)

// Interface abstracts the underlying database implementation and defines the interface for database operations.
type Interface interface {
	Open() error
	Close() error

	// users
	CreateUser(user *User) error
	UpdateUser(user *User) error
	GetUser(id string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByAPIKeyHash(hash string) (User, error)

	// datasets
	SaveDataset(dataset *Dataset) error
	GetDataset(id string) (Dataset, error)
	SearchDatasets(query, field string, limit, offset int) ([]Dataset, error)
	SetChainSignature(datasetID, signature string) error

	// reviews
	GetReviews(datasetID string) ([]Review, error)
	AddReview(review *Review) (*ReviewOutcome, error)

	// points ledger
	AwardPoints(entry *PointsTransaction) error
	GetPointsTransactions(userID string, limit, offset int) ([]PointsTransaction, error)
}

// ReviewOutcome describes the dataset state after a review has been
// aggregated. NewlyVerified is true only on the request that first
// pushed the final score over the verification threshold.
type ReviewOutcome struct {
	Dataset       Dataset
	NewlyVerified bool
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// CreateUser inserts a new user record.
func (ds *DataStore) CreateUser(user *User) error {
	if err := ds.DB.Create(user).Error; err != nil {
		return errors.New(fmt.Errorf("creating user: %w", err)).
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// UpdateUser persists changes to an existing user record.
func (ds *DataStore) UpdateUser(user *User) error {
	if err := ds.DB.Save(user).Error; err != nil {
		return errors.New(fmt.Errorf("updating user: %w", err)).
			Category(errors.CategoryDatabase).
			Context("user_id", user.ID).
			Build()
	}
	return nil
}

// GetUser retrieves a user by ID.
func (ds *DataStore) GetUser(id string) (User, error) {
	var user User
	if err := ds.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("getting user %s: %w", id, err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (ds *DataStore) GetUserByEmail(email string) (User, error) {
	var user User
	if err := ds.DB.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

// GetUserByAPIKeyHash retrieves a user by the hash of their API key.
func (ds *DataStore) GetUserByAPIKeyHash(hash string) (User, error) {
	var user User
	if err := ds.DB.First(&user, "api_key_hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("getting user by api key: %w", err)
	}
	return user, nil
}

// SaveDataset inserts or updates a dataset record.
func (ds *DataStore) SaveDataset(dataset *Dataset) error {
	if err := ds.DB.Save(dataset).Error; err != nil {
		return errors.New(fmt.Errorf("saving dataset: %w", err)).
			Category(errors.CategoryDatabase).
			Context("dataset_id", dataset.ID).
			Build()
	}
	return nil
}

// GetDataset retrieves a dataset by ID.
func (ds *DataStore) GetDataset(id string) (Dataset, error) {
	var dataset Dataset
	if err := ds.DB.First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Dataset{}, ErrDatasetNotFound
		}
		return Dataset{}, fmt.Errorf("getting dataset %s: %w", id, err)
	}
	return dataset, nil
}

// SearchDatasets returns public datasets matching an optional free-text
// query and research field filter, newest first.
func (ds *DataStore) SearchDatasets(query, field string, limit, offset int) ([]Dataset, error) {
	var datasets []Dataset

	tx := ds.DB.Where("is_public = ?", true)
	if query != "" {
		like := "%" + query + "%"
		tx = tx.Where("title LIKE ? OR description LIKE ? OR tags LIKE ?", like, like, like)
	}
	if field != "" {
		tx = tx.Where("research_field = ?", field)
	}

	err := tx.Order("created_at DESC").Limit(limit).Offset(offset).Find(&datasets).Error
	if err != nil {
		return nil, fmt.Errorf("searching datasets: %w", err)
	}
	return datasets, nil
}

// SetChainSignature records the on-chain registration signature for a dataset.
func (ds *DataStore) SetChainSignature(datasetID, signature string) error {
	result := ds.DB.Model(&Dataset{}).Where("id = ?", datasetID).Update("chain_signature", signature)
	if result.Error != nil {
		return fmt.Errorf("setting chain signature: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

// GetReviews returns all reviews for a dataset, newest first.
func (ds *DataStore) GetReviews(datasetID string) ([]Review, error) {
	var reviews []Review
	err := ds.DB.Where("dataset_id = ?", datasetID).Order("created_at DESC").Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("getting reviews for dataset %s: %w", datasetID, err)
	}
	return reviews, nil
}

// AddReview stores a review and recomputes the dataset's aggregate scores
// inside a single transaction. The row lock on the dataset serializes
// concurrent reviews so the read-aggregate-write cycle cannot lose updates.
func (ds *DataStore) AddReview(review *Review) (*ReviewOutcome, error) {
	outcome := &ReviewOutcome{}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var dataset Dataset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&dataset, "id = ?", review.DatasetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDatasetNotFound
			}
			return fmt.Errorf("locking dataset: %w", err)
		}

		// The unique index enforces this too, but an explicit check
		// gives a clean sentinel instead of a driver-specific error.
		var existing int64
		if err := tx.Model(&Review{}).
			Where("dataset_id = ? AND reviewer_id = ?", review.DatasetID, review.ReviewerID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("checking for existing review: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateReview
		}

		if err := tx.Create(review).Error; err != nil {
			return fmt.Errorf("saving review: %w", err)
		}

		var humanScores []float64
		if err := tx.Model(&Review{}).
			Where("dataset_id = ?", review.DatasetID).
			Pluck("human_score", &humanScores).Error; err != nil {
			return fmt.Errorf("loading review scores: %w", err)
		}

		var sum float64
		for _, s := range humanScores {
			sum += s
		}
		mean := sum / float64(len(humanScores))

		final := scoring.FinalScore(float64(dataset.AIConfidenceScore), humanScores)
		verified := scoring.Verified(final)

		dataset.HumanReviewMean = mean
		dataset.FinalScore = final
		dataset.ReviewCount = len(humanScores)
		if verified && !dataset.IsVerified {
			now := time.Now()
			dataset.IsVerified = true
			dataset.IsPublic = true
			dataset.VerifiedAt = &now
			outcome.NewlyVerified = true
		}

		if err := tx.Save(&dataset).Error; err != nil {
			return fmt.Errorf("updating dataset aggregates: %w", err)
		}

		outcome.Dataset = dataset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// AwardPoints appends a ledger entry and adjusts the user's balance in
// the same transaction so the two can never diverge.
func (ds *DataStore) AwardPoints(entry *PointsTransaction) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("saving points transaction: %w", err)
		}

		result := tx.Model(&User{}).Where("id = ?", entry.UserID).
			Update("points", gorm.Expr("points + ?", entry.Amount))
		if result.Error != nil {
			return fmt.Errorf("updating user balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// GetPointsTransactions returns a user's ledger entries, newest first.
func (ds *DataStore) GetPointsTransactions(userID string, limit, offset int) ([]PointsTransaction, error) {
	var entries []PointsTransaction
	err := ds.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("getting points transactions: %w", err)
	}
	return entries, nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}

// performAutoMigration runs GORM auto-migration for all models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &Dataset{}, &Review{}, &PointsTransaction{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}
