// Package poet implements the PoET leader-election and block-sealing
// round described in spec.md §4.5.
package poet

import (
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/metrics"
	"github.com/tolelom/tolchain/network"
	"github.com/tolelom/tolchain/validator"
)

// drawTimeout bounds how long the draw phase waits for every roster
// validator to report a wait time before giving up on the round. Honest-
// but-possibly-crashing validators (spec.md §1 Non-goals) make an
// unbounded wait unsafe; spec.md §5 budgets this phase at 1-10s per
// validator, so a generous multiple of the maximum draw is used here.
const drawTimeout = 20 * time.Second

// Coordinator drives one PoET round per node: draw, equalize, propose,
// elect, commit (spec.md §4.5). Grounded on
// tolelom-tolchain/consensus/poa.go's engine-struct shape (constructor
// takes the chain/mempool-equivalents, exposes a Run loop) fused with
// original_source/src/p2p/node.py's
// generate_wait_time_for_local_validator/add_wait_time_for_validator/
// increase_wait_time_for_validator/are_all_validators_have_wait_time —
// rewritten per spec.md §9's instruction to replace the busy-wait poll
// with a channel-based fan-in/timeout (network.Node.WaitTimeEvents).
type Coordinator struct {
	node    *network.Node
	metrics *metrics.Metrics

	running atomic.Bool
}

// New returns a Coordinator driving rounds on node. It wires node's local
// validator's OnEndorse hook so that endorsement attempts the guarded
// chain append and broadcasts the sealed block (§4.5 step 4).
func New(node *network.Node) *Coordinator {
	c := &Coordinator{node: node}
	if local := node.LocalValidator(); local != nil {
		local.OnEndorse = c.onLocalEndorse
	}
	return c
}

// SetMetrics installs the collector runRound increments each time it
// starts a round. Nil by default: a coordinator used only in tests need
// not wire one up.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// TriggerRound starts a round in the background unless one is already
// in flight. Safe to call from multiple goroutines (e.g. the RPC
// handler and the P2P server both admit transactions that can fill the
// pending pool).
func (c *Coordinator) TriggerRound() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.running.Store(false)
		c.runRound()
	}()
}

func (c *Coordinator) runRound() {
	if c.metrics != nil {
		c.metrics.RoundsStarted.Inc()
	}
	roundID := uuid.NewString()
	local := c.node.LocalValidator()
	if local == nil {
		log.Printf("[poet] round %s: no local validator registered, cannot drive a round", roundID)
		return
	}

	log.Printf("[poet] round %s: draw phase", roundID)
	if !c.drawPhase(local) {
		log.Printf("[poet] round %s: draw phase timed out, aborting round", roundID)
		c.node.StopAllWaitTimers()
		return
	}

	m := c.minWaitTime()
	log.Printf("[poet] round %s: equalization phase, min=%.0fs", roundID, m)
	c.equalizationPhase(m)

	block := c.node.Ch.SealBlock()
	log.Printf("[poet] round %s: proposal phase, candidate=%s txs=%d", roundID, block.Hash, len(block.Transactions))
	c.proposalPhase(block)
}

// drawPhase instructs every roster validator (including the local one)
// to draw a wait time, then blocks on network.Node.WaitTimeEvents until
// every validator has reported one or drawTimeout elapses.
func (c *Coordinator) drawPhase(local *validator.Validator) bool {
	local.GenerateWaitTime()
	for _, peer := range c.node.Peers() {
		c.sendTo(peer, network.Message{Type: network.MsgGenerateWaitTime, Address: &c.node.Self})
	}

	if c.node.AllHaveWaitTime(0) {
		return true
	}
	deadline := time.NewTimer(drawTimeout)
	defer deadline.Stop()
	events := c.node.WaitTimeEvents()
	for {
		select {
		case <-events:
			if c.node.AllHaveWaitTime(0) {
				return true
			}
		case <-deadline.C:
			return false
		}
	}
}

func (c *Coordinator) minWaitTime() float64 {
	min := -1.0
	for _, v := range c.node.Validators() {
		t, ok := v.WaitTime()
		if !ok {
			continue
		}
		if min < 0 || t < min {
			min = t
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

func (c *Coordinator) equalizationPhase(m float64) {
	c.node.AddElapsedTimeAll(m)
	for _, peer := range c.node.Peers() {
		t := m
		c.sendTo(peer, network.Message{Type: network.MsgAddElapsedTime, Time: &t})
	}
}

func (c *Coordinator) proposalPhase(block *chain.Block) {
	if local := c.node.LocalValidator(); local != nil {
		local.ValidateBlock(block)
	}
	for _, peer := range c.node.Peers() {
		c.sendTo(peer, network.Message{Type: network.MsgValidateNewBlock, Block: block})
	}
}

// onLocalEndorse is the local validator's endorsement hook (§4.5 step
// 4): attempt the guarded append, and on success run the commit side-
// effects and broadcast NEW_BLOCK to all peers.
func (c *Coordinator) onLocalEndorse(b *chain.Block) {
	if c.node.Ch.Tip().Hash == b.Hash {
		return // someone else already sealed this block
	}
	if err := c.node.Ch.AppendBlock(b); err != nil {
		log.Printf("[poet] endorsed block %s rejected: %v", b.Hash, err)
		return
	}
	log.Printf("[poet] sealed block %s (%d txs)", b.Hash, len(b.Transactions))
	c.node.StopAllWaitTimers()
	for _, peer := range c.node.Peers() {
		c.sendTo(peer, network.Message{Type: network.MsgNewBlock, Block: b})
	}
}

func (c *Coordinator) sendTo(addr network.Addr, msg network.Message) {
	target := addr.Host + ":" + strconv.Itoa(addr.Port)
	if err := network.SendToTLS(target, msg, c.node.TLSConfig()); err != nil {
		log.Printf("[poet] send to %s refused: %v", target, err)
	}
}
