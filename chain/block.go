package chain

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/tolchain/crypto"
)

// GenesisPrevHash is the sentinel previous_hash carried by the genesis block.
const GenesisPrevHash = "0"

// Block is an ordered batch of transactions linked to its predecessor by
// hash.
type Block struct {
	Timestamp    float64        `json:"timestamp"`
	Transactions []*Transaction `json:"transactions"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// NewBlock builds a block from its transactions and predecessor hash,
// computing its own hash.
func NewBlock(txs []*Transaction, previousHash string, timestamp float64) *Block {
	if txs == nil {
		txs = []*Transaction{}
	}
	b := &Block{
		Timestamp:    timestamp,
		Transactions: txs,
		PreviousHash: previousHash,
	}
	b.Hash = b.ComputeHash()
	return b
}

// NewGenesisBlock returns the canonical empty genesis block.
func NewGenesisBlock() *Block {
	return NewBlock(nil, GenesisPrevHash, 0)
}

// hashData is the canonical, key-sorted view hashed to produce Block.Hash.
// Building it as a map lets encoding/json's deterministic key ordering for
// map[string]any do the "sort keys lexicographically" work for us.
func (b *Block) hashData() map[string]any {
	return map[string]any{
		"timestamp":     b.Timestamp,
		"transactions":  b.Transactions,
		"previous_hash": b.PreviousHash,
	}
}

// ComputeHash recomputes the canonical SHA-256 hash of the block.
func (b *Block) ComputeHash() string {
	raw, err := json.Marshal(b.hashData())
	if err != nil {
		return ""
	}
	return crypto.Hash(raw)
}

// VerifyIntegrity reports whether Hash matches the recomputed hash.
func (b *Block) VerifyIntegrity() bool {
	return b.Hash == b.ComputeHash()
}

// VerifyTransactions checks that every transaction in the block verifies
// under its own voter key.
func (b *Block) VerifyTransactions() error {
	for i, tx := range b.Transactions {
		if err := tx.Verify(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}
