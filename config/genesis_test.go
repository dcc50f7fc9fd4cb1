package config

import (
	"testing"

	"github.com/tolelom/tolchain/chain"
)

func TestCreateGenesisBlockIsGenesis(t *testing.T) {
	cfg := DefaultConfig()
	b := CreateGenesisBlock(cfg)
	if !IsGenesisBlock(b) {
		t.Error("CreateGenesisBlock should return a block IsGenesisBlock recognizes")
	}
	if len(b.Transactions) != 0 {
		t.Error("genesis block should carry no transactions")
	}
}

func TestIsGenesisBlockRejectsOrdinaryBlock(t *testing.T) {
	ordinary := chain.NewBlock(nil, "some-previous-hash", 1)
	if IsGenesisBlock(ordinary) {
		t.Error("a block whose previous_hash isn't the genesis sentinel should not be recognized as genesis")
	}
}
