package chain

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tolelom/tolchain/events"
	"github.com/tolelom/tolchain/metrics"
)

// Status is the admission outcome reported back to the submitter of a
// transaction.
type Status string

const (
	StatusNewBlock       Status = "NEW_BLOCK"
	StatusNewTransaction Status = "NEW_TRANSACTION"
	StatusIgnored        Status = "IGNORED"
)

// BlockCapacity is the pending-pool size that triggers a PoET round.
const BlockCapacity = 5

// Sentinel errors, consulted by callers that want to distinguish
// rejection reasons from a plain IGNORED status (e.g. for logging).
var (
	ErrUnknownContract    = errors.New("unknown contract")
	ErrContractExists     = errors.New("contract already exists")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidBlockLink   = errors.New("previous_hash does not match tip")
	ErrInvalidBlockHash   = errors.New("block hash does not match recomputation")
)

// Chain is the node's single in-memory copy of the ledger: an ordered
// block list, the pending transaction pool, and the contract registry. A
// single mutex protects all three, per spec.md §5's "Shared resources".
//
// Grounded on tolelom-tolchain/core/blockchain.go's sync-guarded tip
// append, generalized to an in-memory-only BlockStore (no persistence is
// a spec.md Non-goal) and extended with the contract registry and
// admission predicate from original_source/src/blockchain/blockchain.py.
type Chain struct {
	mu        sync.Mutex
	blocks    []*Block
	pending   *pendingPool
	contracts map[string]*Contract
	emitter   *events.Emitter
	metrics   *metrics.Metrics
}

// NewChain returns a fresh chain containing only the genesis block.
func NewChain() *Chain {
	return &Chain{
		blocks:    []*Block{NewGenesisBlock()},
		pending:   newPendingPool(),
		contracts: make(map[string]*Contract),
	}
}

// SetEmitter installs the event sink that AppendBlock/executeLocked
// notify after a successful commit. Nil by default: a chain used only
// in tests need not wire one up.
func (c *Chain) SetEmitter(e *events.Emitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitter = e
}

// SetMetrics installs the collectors AddTransaction/AppendBlock increment
// on admission and commit. Nil by default: a chain used only in tests
// need not wire one up.
func (c *Chain) SetMetrics(m *metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Tip returns the current chain tip.
func (c *Chain) Tip() *Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks in the chain, including genesis.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// PendingSize returns the number of pending transactions.
func (c *Chain) PendingSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.size()
}

// Contract returns the named contract, if any.
func (c *Chain) Contract(name string) (*Contract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.contracts[name]
	return ct, ok
}

// ---- 4.1 Chain admission predicate ----

// AddTransaction admits tx if it passes signature verification and its
// method-specific precondition (spec.md §4.1), evaluated against the
// union of committed state and the still-pending pool. On acceptance it
// is appended to the pending pool (unless a structural duplicate is
// already present) and the returned Status reflects whether a round is
// now due.
func (c *Chain) AddTransaction(tx *Transaction) Status {
	if err := tx.Verify(); err != nil {
		c.countIgnored()
		return StatusIgnored
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.admitLocked(tx) {
		c.countIgnoredLocked()
		return StatusIgnored
	}
	if !c.pending.add(tx) {
		// Structurally identical transaction already pending.
		c.countIgnoredLocked()
		return StatusIgnored
	}
	c.countAdmittedLocked()
	if c.pending.size() >= BlockCapacity {
		return StatusNewBlock
	}
	return StatusNewTransaction
}

func (c *Chain) countIgnored() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countIgnoredLocked()
}

func (c *Chain) countIgnoredLocked() {
	if c.metrics != nil {
		c.metrics.TxIgnored.Inc()
	}
}

func (c *Chain) countAdmittedLocked() {
	if c.metrics != nil {
		c.metrics.TxAdmitted.Inc()
	}
}

// admitLocked evaluates the method-specific precondition. Caller must
// hold c.mu.
func (c *Chain) admitLocked(tx *Transaction) bool {
	switch tx.ContractMethod {
	case MethodCreate:
		if _, exists := c.contracts[tx.ContractName]; exists {
			return false
		}
		return !c.pendingHasMethodForContract(tx.ContractName, MethodCreate)

	case MethodStartVoting:
		ct, exists := c.contracts[tx.ContractName]
		if !exists && !c.pendingHasCreate(tx.ContractName) {
			return false
		}
		if exists && ct.State != StateNotStarted {
			return false
		}
		return !c.pendingHasMethodForContract(tx.ContractName, MethodStartVoting)

	case MethodAddCandidate:
		ct, exists := c.contracts[tx.ContractName]
		if !exists && !c.pendingHasCreate(tx.ContractName) {
			return false
		}
		if exists && ct.State != StateNotStarted {
			return false
		}
		if c.pendingHasMethodForContract(tx.ContractName, MethodStartVoting) {
			return false
		}
		if len(tx.Args) < 1 {
			return false
		}
		candidate := tx.Args[0]
		if exists && ct.HasCandidate(candidate) {
			return false
		}
		return !c.pendingHasCandidate(tx.ContractName, candidate)

	case MethodVote:
		ct, exists := c.contracts[tx.ContractName]
		if !exists || !ct.InProgress() {
			return false
		}
		if len(tx.Args) < 2 {
			return false
		}
		voterKey, candidate := tx.Args[0], tx.Args[1]
		if !ct.HasCandidate(candidate) {
			return false
		}
		if ct.HasVoted(voterKey) {
			return false
		}
		return !c.pendingHasVote(tx.ContractName, voterKey)

	case MethodFinishVoting:
		ct, exists := c.contracts[tx.ContractName]
		if !exists || !ct.InProgress() {
			return false
		}
		return !c.pendingHasMethodForContract(tx.ContractName, MethodFinishVoting)

	default:
		return false
	}
}

func (c *Chain) pendingHasCreate(contractName string) bool {
	return c.pendingHasMethodForContract(contractName, MethodCreate)
}

func (c *Chain) pendingHasMethodForContract(contractName string, method Method) bool {
	for _, tx := range c.pending.all() {
		if tx.ContractName == contractName && tx.ContractMethod == method {
			return true
		}
	}
	return false
}

func (c *Chain) pendingHasCandidate(contractName, candidate string) bool {
	for _, tx := range c.pending.all() {
		if tx.ContractName == contractName && tx.ContractMethod == MethodAddCandidate &&
			len(tx.Args) >= 1 && tx.Args[0] == candidate {
			return true
		}
	}
	return false
}

func (c *Chain) pendingHasVote(contractName, voterKey string) bool {
	for _, tx := range c.pending.all() {
		if tx.ContractName == contractName && tx.ContractMethod == MethodVote &&
			len(tx.Args) >= 1 && tx.Args[0] == voterKey {
			return true
		}
	}
	return false
}

// ---- 4.3 Block validation ----

// ValidateBlock reports whether b correctly links to prev, its hash
// recomputes correctly, and every transaction it carries verifies.
func (c *Chain) ValidateBlock(b, prev *Block) error {
	if b.PreviousHash != prev.Hash {
		return ErrInvalidBlockLink
	}
	if !b.VerifyIntegrity() {
		return ErrInvalidBlockHash
	}
	if err := b.VerifyTransactions(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// SealBlock builds a candidate block from the current pending pool,
// linked to the current tip. Called by the PoET coordinator's proposal
// phase (§4.5 step 3); does not append it.
func (c *Chain) SealBlock() *Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	tip := c.blocks[len(c.blocks)-1]
	txs := append([]*Transaction(nil), c.pending.all()...)
	return NewBlock(txs, tip.Hash, float64(time.Now().UnixNano())/1e9)
}

// AppendBlock performs the guarded tip-append from §4.5 step 4: it
// re-validates b against the current tip inside the critical section
// (the "check again after acquiring lock" pattern), and on success
// executes the block's transactions against the contract registry and
// prunes the pending pool (§4.5 step 5). Receiving a block whose hash
// equals the current tip is a no-op (idempotence, spec.md §8).
func (c *Chain) AppendBlock(b *Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.blocks[len(c.blocks)-1]
	if b.Hash == tip.Hash {
		return nil
	}
	if err := c.ValidateBlock(b, tip); err != nil {
		return err
	}
	c.blocks = append(c.blocks, b)
	c.executeLocked(b)
	c.pending.removeCommitted(b.Transactions)
	if c.emitter != nil {
		c.emitter.Emit(events.Event{Type: events.EventBlockSealed, BlockHash: b.Hash, Data: map[string]any{"tx_count": len(b.Transactions)}})
	}
	if c.metrics != nil {
		c.metrics.BlocksSealed.Inc()
	}
	return nil
}

// ---- 4.2 Deterministic contract execution ----

// executeLocked replays b's transactions against the contract registry.
// Caller must hold c.mu. Any per-transaction error is logged and
// swallowed; replay never aborts mid-block.
func (c *Chain) executeLocked(b *Block) {
	for _, tx := range b.Transactions {
		if err := c.applyOne(tx); err != nil {
			log.Printf("[chain] replay %s on %q: %v", tx.ContractMethod, tx.ContractName, err)
			continue
		}
		if c.emitter != nil {
			c.emitter.Emit(c.txEvent(tx))
		}
	}
}

func (c *Chain) txEvent(tx *Transaction) events.Event {
	var typ events.EventType
	switch tx.ContractMethod {
	case MethodCreate:
		typ = events.EventContractCreated
	case MethodAddCandidate:
		typ = events.EventCandidateAdded
	case MethodStartVoting:
		typ = events.EventVotingStarted
	case MethodVote:
		typ = events.EventVoteCast
	case MethodFinishVoting:
		typ = events.EventVotingFinished
	default:
		typ = events.EventTxExecuted
	}
	return events.Event{Type: typ, ContractName: tx.ContractName, Data: map[string]any{"voter_key": tx.VoterKey, "args": tx.Args}}
}

func (c *Chain) applyOne(tx *Transaction) error {
	switch tx.ContractMethod {
	case MethodCreate:
		if _, exists := c.contracts[tx.ContractName]; !exists {
			c.contracts[tx.ContractName] = NewContract(tx.ContractName)
		}
		return nil

	case MethodStartVoting:
		ct, ok := c.contracts[tx.ContractName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContract, tx.ContractName)
		}
		ct.StartVoting()
		return nil

	case MethodFinishVoting:
		ct, ok := c.contracts[tx.ContractName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContract, tx.ContractName)
		}
		ct.FinishVoting()
		return nil

	case MethodAddCandidate:
		ct, ok := c.contracts[tx.ContractName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContract, tx.ContractName)
		}
		if len(tx.Args) < 1 {
			return fmt.Errorf("%w: missing candidate arg", ErrPreconditionFailed)
		}
		return ct.AddCandidate(tx.Args[0])

	case MethodVote:
		ct, ok := c.contracts[tx.ContractName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContract, tx.ContractName)
		}
		if len(tx.Args) < 2 {
			return fmt.Errorf("%w: missing vote args", ErrPreconditionFailed)
		}
		return ct.Vote(tx.Args[0], tx.Args[1])

	default:
		return fmt.Errorf("%w: unknown method %q", ErrPreconditionFailed, tx.ContractMethod)
	}
}

// ---- Snapshot / merge (§4.6) ----

// Snapshot is a value copy of the chain's visible state, used both by the
// merge policy and by read-only RPC handlers so callers never alias
// mutable chain internals (supplemented from original_source's copy(),
// SPEC_FULL.md §4).
type Snapshot struct {
	Blocks    []*Block
	Pending   []*Transaction
	Contracts map[string]*Contract
}

// Snapshot returns a copy of the chain's current state: fresh block and
// pending slices (sharing the Block and Transaction values themselves)
// and deep-cloned contracts.
func (c *Chain) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	blocks := append([]*Block(nil), c.blocks...)
	pending := append([]*Transaction(nil), c.pending.all()...)
	contracts := make(map[string]*Contract, len(c.contracts))
	for name, ct := range c.contracts {
		contracts[name] = ct.Clone()
	}
	return Snapshot{Blocks: blocks, Pending: pending, Contracts: contracts}
}

// MergeFrom applies the longest-chain / richer-contract-set merge policy
// (spec.md §4.6) against a peer's snapshot. Returns whether local state
// changed, which the caller uses to decide whether to re-broadcast.
func (c *Chain) MergeFrom(peer Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false

	if len(peer.Contracts) > len(c.contracts) {
		c.contracts = cloneContracts(peer.Contracts)
		changed = true
	}

	switch {
	case len(peer.Blocks) > len(c.blocks):
		c.blocks = append([]*Block(nil), peer.Blocks...)
		c.contracts = cloneContracts(peer.Contracts)
		newTip := c.blocks[len(c.blocks)-1]
		c.pending.removeCommitted(newTip.Transactions)
		changed = true

	case len(peer.Blocks) == len(c.blocks):
		for _, tx := range peer.Pending {
			if c.admitLocked(tx) && c.pending.add(tx) {
				changed = true
			}
		}
	}

	return changed
}

// MergeContracts applies only the richer-contract-set tie-break of
// spec.md §4.6 against an out-of-band CONTRACTS gossip message, never
// mutating blocks or pending transactions — per spec.md §9's resolution
// of the "CONTRACTS bypassing block commit" open question, contract
// state otherwise only changes via executeLocked on commit.
func (c *Chain) MergeContracts(peer map[string]*Contract) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(peer) <= len(c.contracts) {
		return false
	}
	c.contracts = cloneContracts(peer)
	return true
}

func cloneContracts(in map[string]*Contract) map[string]*Contract {
	out := make(map[string]*Contract, len(in))
	for name, ct := range in {
		out[name] = ct.Clone()
	}
	return out
}
