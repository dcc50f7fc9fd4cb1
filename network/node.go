package network

import (
	"crypto/tls"
	"strconv"
	"sync"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/validator"
)

// Node holds the chain state, the peer set, the validator roster, and an
// optional reference to the local validator (spec.md §4.6). Grounded on
// tolelom-tolchain/network/node.go's handler-map/peer-registry shape for
// the overall struct layout, fused with original_source/src/p2p/node.py's
// validator-roster and merge-policy operations, which the teacher's own
// Node has no analogue for because it runs Proof-of-Authority, not PoET.
// The transport (listener, accept loop, dispatch) lives in package server;
// Node is the pure data layer server.Server drives.
type Node struct {
	Self Addr
	Ch   *chain.Chain

	mu         sync.RWMutex
	peers      map[string]Addr
	validators map[string]*validator.Validator
	local      *validator.Validator
	tlsConfig  *tls.Config // nil -> plain TCP, set once via SetTLSConfig before Server.Start

	// waitTimeEvents is the round-reply channel the PoET coordinator
	// selects on during the draw phase, instead of polling
	// are_all_validators_have_wait_time in a busy loop (spec.md §9).
	waitTimeEvents chan string
}

// NewNode returns a Node bound to chain c, identifying itself as self.
func NewNode(self Addr, c *chain.Chain) *Node {
	return &Node{
		Self:           self,
		Ch:             c,
		peers:          make(map[string]Addr),
		validators:     make(map[string]*validator.Validator),
		waitTimeEvents: make(chan string, 64),
	}
}

func addrKey(a Addr) string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// SetTLSConfig installs the mTLS config the P2P listener and outgoing
// peer dials should use. Called once during startup, before
// server.Server.Start; leaving it unset (the default) keeps plain TCP,
// matching tolelom-tolchain/network/node.go's "nil -> plain TCP"
// convention.
func (n *Node) SetTLSConfig(cfg *tls.Config) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tlsConfig = cfg
}

// TLSConfig returns the installed mTLS config, or nil for plain TCP.
func (n *Node) TLSConfig() *tls.Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tlsConfig
}

// ---- Peers ----

// AddPeer adds peer to the set if not already present. Returns whether it
// was newly added.
func (n *Node) AddPeer(p Addr) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := addrKey(p)
	if _, exists := n.peers[key]; exists {
		return false
	}
	n.peers[key] = p
	return true
}

// RemovePeer removes peer from the set.
func (n *Node) RemovePeer(p Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, addrKey(p))
}

// Peers returns a snapshot of the peer set.
func (n *Node) Peers() []Addr {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Addr, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

// ---- Validators ----

// RegisterValidator installs v as the local validator and adds it to the
// roster. Returns false if a validator at the same address is already
// registered (supplemented from original_source's
// register_validator/add_validator return value, SPEC_FULL.md §4).
func (n *Node) RegisterValidator(v *validator.Validator) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.validators[v.Address()]; exists {
		return false
	}
	n.validators[v.Address()] = v
	n.local = v
	return true
}

// AddValidator adds a remote validator descriptor to the roster if its
// address is not already present.
func (n *Node) AddValidator(v *validator.Validator) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.validators[v.Address()]; exists {
		return false
	}
	n.validators[v.Address()] = v
	return true
}

// LocalValidator returns the node's own validator handle, or nil if none
// has been registered.
func (n *Node) LocalValidator() *validator.Validator {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.local
}

// Validators returns a snapshot of the validator roster.
func (n *Node) Validators() []*validator.Validator {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*validator.Validator, 0, len(n.validators))
	for _, v := range n.validators {
		out = append(out, v)
	}
	return out
}

// ValidatorAt returns the validator registered at addr, if any.
func (n *Node) ValidatorAt(addr string) (*validator.Validator, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.validators[addr]
	return v, ok
}

// AllHaveWaitTime reports whether every roster validator has drawn a wait
// time greater than min. The PoET coordinator consults this after each
// WaitTimeEvents wakeup; it is never spun on (spec.md §9).
func (n *Node) AllHaveWaitTime(min float64) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, v := range n.validators {
		t, ok := v.WaitTime()
		if !ok || t <= min {
			return false
		}
	}
	return true
}

// AddElapsedTimeAll normalizes every roster validator's timer by delta
// (the equalization phase, §4.5 step 2).
func (n *Node) AddElapsedTimeAll(delta float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, v := range n.validators {
		v.AddElapsedTime(delta)
	}
}

// StopAllWaitTimers cancels every roster validator's timer (commit
// side-effect, §4.5 step 5).
func (n *Node) StopAllWaitTimers() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, v := range n.validators {
		v.StopWaitTimer()
	}
}

// NotifyWaitTime signals that addr's wait time is now known — called by
// the server's WAIT_TIME handler after recording the value. The send is
// non-blocking: a full channel just means the coordinator hasn't drained
// its last wakeup yet, and it will re-check AllHaveWaitTime regardless of
// which address triggered it.
func (n *Node) NotifyWaitTime(addr string) {
	select {
	case n.waitTimeEvents <- addr:
	default:
	}
}

// WaitTimeEvents returns the channel the PoET coordinator selects on
// during the draw phase.
func (n *Node) WaitTimeEvents() <-chan string {
	return n.waitTimeEvents
}

// ---- Blocks / sync ----

// AddBlock validates a peer-supplied block against the current tip and,
// on success, appends and executes it (spec.md §4.7's NEW_BLOCK effect).
func (n *Node) AddBlock(b *chain.Block) bool {
	return n.Ch.AppendBlock(b) == nil
}

// SyncFrom applies the merge policy against a peer's chain snapshot.
func (n *Node) SyncFrom(peer chain.Snapshot) bool {
	return n.Ch.MergeFrom(peer)
}
