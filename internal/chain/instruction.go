package chain

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/africaresearchbase/arb/internal/errors"
)

// Limits enforced by the on-chain program. Exceeding them would only
// fail later at simulation, so they are checked before submitting.
const (
	maxFileNameLen  = 100
	maxQualityScore = 100
	maxFileSize     = 104_857_600 // 100 MiB
)

// createDatasetArgs mirrors the Borsh layout of the program's
// create_dataset instruction arguments.
type createDatasetArgs struct {
	ContentHash     [32]byte
	AIMetadata      []byte
	FileName        []byte
	FileSize        uint64
	ColumnCount     uint64
	RowCount        uint64
	QualityScore    uint8
	UploadTimestamp int64
	LastUpdated     *int64 `bin:"optional"`
	DownloadCount   uint32
	IsActive        bool
}

func (a createDatasetArgs) validate() error {
	if len(a.FileName) > maxFileNameLen {
		return errors.Newf("file name exceeds %d bytes", maxFileNameLen).
			Category(errors.CategoryValidation).
			Context("file_name_len", len(a.FileName)).
			Build()
	}
	if a.QualityScore > maxQualityScore {
		return errors.Newf("quality score %d exceeds %d", a.QualityScore, maxQualityScore).
			Category(errors.CategoryValidation).
			Build()
	}
	if a.FileSize > maxFileSize {
		return errors.Newf("file size %d exceeds %d bytes", a.FileSize, maxFileSize).
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// encodeCreateDataset produces the instruction data: the Anchor
// discriminator followed by the Borsh-encoded arguments.
func encodeCreateDataset(args createDatasetArgs) ([]byte, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(anchorDiscriminator("create_dataset"))
	if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryChain).
			Context("operation", "encode_create_dataset").
			Build()
	}
	return buf.Bytes(), nil
}

// buildCreateDatasetInstruction assembles the full instruction. The
// program deserializes accounts positionally: admin, user and
// contributor signers first, then the registry, dataset and reputation
// PDAs, then the system program. In custodial mode the admin key fills
// all three signer slots and the reputation PDA is derived from it.
func buildCreateDatasetInstruction(programID solana.PublicKey, admin solana.PublicKey, args createDatasetArgs) (solana.Instruction, error) {
	data, err := encodeCreateDataset(args)
	if err != nil {
		return nil, err
	}

	registry, _, err := DeriveRegistryPDA(programID, admin)
	if err != nil {
		return nil, pdaError(err, "registry")
	}
	dataset, _, err := DeriveDatasetPDA(programID, admin)
	if err != nil {
		return nil, pdaError(err, "dataset")
	}
	reputation, _, err := DeriveReputationPDA(programID, admin)
	if err != nil {
		return nil, pdaError(err, "reputation")
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(admin, true, true), // admin
		solana.NewAccountMeta(admin, true, true), // user
		solana.NewAccountMeta(admin, true, true), // contributor
		solana.NewAccountMeta(registry, true, false),
		solana.NewAccountMeta(dataset, false, false),
		solana.NewAccountMeta(reputation, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

func pdaError(err error, account string) error {
	return errors.New(err).
		Category(errors.CategoryChain).
		Context("pda", account).
		Build()
}
