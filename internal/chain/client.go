package chain

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/errors"
	"github.com/africaresearchbase/arb/internal/logging"
)

// Client submits dataset registrations to the research base program.
type Client struct {
	rpc        *rpc.Client
	programID  solana.PublicKey
	admin      solana.PrivateKey
	commitment rpc.CommitmentType
	logger     *slog.Logger
}

// New builds a chain client from settings. Returns an error when the
// program ID or admin key cannot be parsed; callers should treat a nil
// client as chain registration being unavailable.
func New(settings *conf.ChainSettings) (*Client, error) {
	programID, err := solana.PublicKeyFromBase58(settings.ProgramID)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("setting", "chain.programid").
			Build()
	}
	admin, err := solana.PrivateKeyFromBase58(settings.AdminKey)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("setting", "chain.adminkey").
			Build()
	}

	commitment := rpc.CommitmentConfirmed
	switch settings.Commitment {
	case "processed":
		commitment = rpc.CommitmentProcessed
	case "finalized":
		commitment = rpc.CommitmentFinalized
	}

	return &Client{
		rpc:        rpc.New(settings.RPCURL),
		programID:  programID,
		admin:      admin,
		commitment: commitment,
		logger:     logging.ForService("chain"),
	}, nil
}

// RegisterDataset writes the dataset's metadata on chain and returns the
// transaction signature. The content hash must be the dataset's SHA-256
// hex digest.
func (c *Client) RegisterDataset(ctx context.Context, ds *datastore.Dataset) (string, error) {
	var contentHash [32]byte
	decoded, err := hex.DecodeString(ds.ContentHash)
	if err != nil || len(decoded) != 32 {
		return "", errors.Newf("content hash is not a 32-byte hex digest").
			Category(errors.CategoryValidation).
			Context("dataset_id", ds.ID).
			Build()
	}
	copy(contentHash[:], decoded)

	args := createDatasetArgs{
		ContentHash:     contentHash,
		AIMetadata:      []byte(ds.AIAnalysis),
		FileName:        []byte(ds.FileName),
		FileSize:        uint64(ds.FileSize),
		ColumnCount:     uint64(ds.ColumnCount),
		RowCount:        uint64(ds.RowCount),
		QualityScore:    registrationQuality(ds),
		UploadTimestamp: ds.CreatedAt.Unix(),
		DownloadCount:   0,
		IsActive:        true,
	}

	inst, err := buildCreateDatasetInstruction(c.programID, c.admin.PublicKey(), args)
	if err != nil {
		return "", err
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return "", c.rpcError(err, "get_latest_blockhash", ds.ID)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.admin.PublicKey()),
	)
	if err != nil {
		return "", c.rpcError(err, "build_transaction", ds.ID)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.admin.PublicKey()) {
			return &c.admin
		}
		return nil
	})
	if err != nil {
		return "", c.rpcError(err, "sign_transaction", ds.ID)
	}

	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return "", c.rpcError(err, "send_transaction", ds.ID)
	}

	c.logger.Info("dataset registered on chain",
		"dataset_id", ds.ID,
		"signature", sig.String())
	return sig.String(), nil
}

// registrationQuality picks the score recorded on chain. Registration
// usually happens at upload time, before any review exists; the AI
// confidence score stands in until the final score has human input.
func registrationQuality(ds *datastore.Dataset) uint8 {
	if ds.ReviewCount == 0 {
		return uint8(ds.AIConfidenceScore)
	}
	return uint8(ds.FinalScore)
}

// HealthCheck verifies the RPC endpoint responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.rpc.GetHealth(ctx); err != nil {
		return errors.New(err).
			Category(errors.CategoryNetwork).
			Context("operation", "chain_health").
			Build()
	}
	return nil
}

func (c *Client) rpcError(err error, op, datasetID string) error {
	return errors.New(err).
		Category(errors.CategoryChain).
		Context("operation", op).
		Context("dataset_id", datasetID).
		Build()
}
