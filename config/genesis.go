package config

import "github.com/tolelom/tolchain/chain"

// CreateGenesisBlock builds the chain's genesis block. Unlike the
// teacher's balance-ledger genesis (which credits an alloc map and
// signs block #0 with the proposer's key), a voting chain's genesis
// carries no transactions and no signature — chain.NewChain already
// seals it with chain.GenesisPrevHash, so this just documents the
// construction point callers should use instead of building one by
// hand.
func CreateGenesisBlock(cfg *Config) *chain.Block {
	return chain.NewGenesisBlock()
}

// IsGenesisBlock reports whether b is the chain's genesis block.
func IsGenesisBlock(b *chain.Block) bool {
	return b.PreviousHash == chain.GenesisPrevHash
}
