// Package network implements the P2P overlay: peer connections, the
// message taxonomy, the validator roster, and the longest-chain merge
// policy (spec.md §4.6/§4.7).
package network

import "github.com/tolelom/tolchain/chain"

// MsgType discriminates the P2P message taxonomy of spec.md §4.7.
type MsgType string

const (
	MsgNewTransaction         MsgType = "NEW_TRANSACTION"
	MsgNewBlock               MsgType = "NEW_BLOCK"
	MsgNewPeer                MsgType = "NEW_PEER"
	MsgNewValidator           MsgType = "NEW_VALIDATOR"
	MsgGetBlockchain          MsgType = "GET_BLOCKCHAIN"
	MsgBlockchain             MsgType = "BLOCKCHAIN"
	MsgGetPendingTransactions MsgType = "GET_PENDING_TRANSACTIONS"
	MsgPendingTransactions    MsgType = "PENDING_TRANSACTIONS"
	MsgContracts              MsgType = "CONTRACTS"
	MsgValidateNewBlock       MsgType = "VALIDATE_NEW_BLOCK"
	MsgGenerateWaitTime       MsgType = "GENERATE_WAIT_TIME"
	MsgWaitTime               MsgType = "WAIT_TIME"
	MsgAddElapsedTime         MsgType = "ADD_ELAPSED_TIME"
	MsgSync                   MsgType = "SYNC"
)

// Addr is a (host, port) pair. Equality is structural.
// Grounded on original_source/src/p2p/peer.py.
type Addr struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Equal reports structural equality.
func (a Addr) Equal(other Addr) bool {
	return a.Host == other.Host && a.Port == other.Port
}

// ValidatorInfo is the wire descriptor for a validator's identity and
// address (spec.md §3's Validator, minus process-local timer state).
type ValidatorInfo struct {
	Key  string `json:"key"`
	Addr Addr   `json:"addr"`
}

// ChainSnapshot is the wire form of chain.Snapshot: contracts serialize
// as a plain map, matching spec.md §6's field names.
type ChainSnapshot struct {
	Chain     []*chain.Block             `json:"chain"`
	Pending   []*chain.Transaction       `json:"pending_transactions"`
	Contracts map[string]*chain.Contract `json:"contracts"`
}

// Message is a single framed P2P message: a type discriminator plus
// type-specific fields, per spec.md §4.7's dispatch table. Unused
// fields are omitted from the wire encoding.
type Message struct {
	Type MsgType `json:"type"`

	Transaction  *chain.Transaction         `json:"transaction,omitempty"`
	Transactions []*chain.Transaction       `json:"transactions,omitempty"`
	Block        *chain.Block               `json:"block,omitempty"`
	Peer         *Addr                      `json:"peer,omitempty"`
	Address      *Addr                      `json:"address,omitempty"`
	Validator    *ValidatorInfo             `json:"validator,omitempty"`
	Blockchain   *ChainSnapshot             `json:"blockchain,omitempty"`
	Contracts    map[string]*chain.Contract `json:"contracts,omitempty"`
	WaitTime     *float64                   `json:"wait_time,omitempty"`
	Time         *float64                   `json:"time,omitempty"`
}
