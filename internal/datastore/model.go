// model.go this code defines the data model for the application
package datastore

import "time"

// User represents a registered account. API access uses either a session
// token or the stored API key hash.
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Email        string `gorm:"uniqueIndex;not null"`
	DisplayName  string
	Institution  string
	PasswordHash string `gorm:"not null"`
	APIKeyHash   string `gorm:"index"`
	Points       int    `gorm:"not null;default:0"` // running balance, mirrors the ledger
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Dataset represents an uploaded research dataset and its scoring state.
type Dataset struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	UploaderID    string `gorm:"index;not null"`
	Title         string `gorm:"index;not null"`
	Description   string `gorm:"type:text"`
	ResearchField string `gorm:"index"`
	Tags          string // comma separated

	FileName    string
	FileSize    int64
	ContentType string
	FileURL     string
	ObjectKey   string
	ContentHash string `gorm:"type:varchar(64);index"` // hex SHA-256 of the file
	RowCount    int
	ColumnCount int

	AIConfidenceScore int     `gorm:"not null;default:0"` // 0-100
	AIAnalysis        string  `gorm:"type:text"`
	HumanReviewMean   float64 `gorm:"not null;default:0"`
	FinalScore        float64 `gorm:"not null;default:0"`
	ReviewCount       int     `gorm:"not null;default:0"`
	IsPublic          bool    `gorm:"index;not null;default:false"`
	IsVerified        bool    `gorm:"index;not null;default:false"`
	VerifiedAt        *time.Time
	ChainSignature    string // transaction signature of the on-chain registration, empty if unregistered

	Reviews   []Review `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Review recommendation values.
const (
	RecommendApprove          = "approve"
	RecommendReject           = "reject"
	RecommendNeedsImprovement = "needs_improvement"
)

// Review represents a single reviewer's assessment of a dataset.
// One review per reviewer per dataset; immutable once created.
type Review struct {
	ID         uint   `gorm:"primaryKey"`
	DatasetID  string `gorm:"uniqueIndex:idx_reviews_dataset_reviewer;not null"`
	ReviewerID string `gorm:"uniqueIndex:idx_reviews_dataset_reviewer;not null"`

	Accuracy     int `gorm:"not null"` // 1-5
	Completeness int `gorm:"not null"` // 1-5
	Relevance    int `gorm:"not null"` // 1-5
	Methodology  int `gorm:"not null"` // 1-5

	HumanScore     float64 `gorm:"not null"` // 0-100, derived from the ratings
	Feedback       string  `gorm:"type:text"`
	Recommendation string  `gorm:"type:varchar(20)"` // approve, reject, needs_improvement

	CreatedAt time.Time `gorm:"index"`
}

// Points transaction type tags.
const (
	TxUploadReward      = "upload_reward"
	TxVerificationBonus = "verification_bonus"
	TxReviewReward      = "review_reward"
	TxDownloadSpend     = "download_spend"
)

// PointsTransaction is an append-only ledger entry. User.Points is the
// materialized sum; both are updated in the same transaction.
type PointsTransaction struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"index;not null"`
	Amount      int    `gorm:"not null"` // signed delta
	Type        string `gorm:"type:varchar(30);index;not null"`
	Description string
	Metadata    string    `gorm:"type:text"` // arbitrary JSON
	CreatedAt   time.Time `gorm:"index"`
}
