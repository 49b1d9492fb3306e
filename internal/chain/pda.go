// Package chain registers dataset metadata with the on-chain research
// base program. The account layout, PDA seeds and instruction encoding
// are dictated by the program's interface.
package chain

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// PDA seed prefixes defined by the on-chain program.
var (
	seedRegistry   = []byte("registry")
	seedDataset    = []byte("dataset")
	seedReputation = []byte("reputation")
)

// anchorDiscriminator returns the 8-byte Anchor instruction discriminator
// for a global instruction name.
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// DeriveRegistryPDA derives the registry account address for an admin key.
func DeriveRegistryPDA(programID, admin solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedRegistry, admin.Bytes()}, programID)
}

// DeriveDatasetPDA derives the dataset account address for an admin key.
func DeriveDatasetPDA(programID, admin solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedDataset, admin.Bytes()}, programID)
}

// DeriveReputationPDA derives the contributor reputation account address.
func DeriveReputationPDA(programID, contributor solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedReputation, contributor.Bytes()}, programID)
}
