// Package validator implements the per-validator PoET wait-timer and
// endorsement queue described in spec.md §4.4.
package validator

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/tolelom/tolchain/chain"
)

// Validator holds one registered validator's identity, network address,
// and wait-timer state. Grounded directly on
// original_source/src/blockchain/validator.py and
// original_source/src/p2p/validator.py, rewritten with a cooperative
// time.AfterFunc timer instead of Python's threading.Timer, per
// spec.md §9's "Timer callbacks" design note.
type Validator struct {
	Key  string // hex PKCS1 RSA public key
	Host string
	Port int

	// OnEndorse, when set, is invoked with the endorsed block each time
	// this validator's timer fires — the hook the local node uses to
	// attempt the guarded chain append and re-broadcast (spec.md §4.5
	// step 4). Remote validator descriptors leave it nil.
	OnEndorse func(*chain.Block)

	mu              sync.Mutex
	waitTime        *float64 // seconds, nil when undrawn
	timer           *time.Timer
	blockToAdd      *chain.Block
	validatedBlocks []*chain.Block
}

// New returns a Validator with no drawn wait time.
func New(key, host string, port int) *Validator {
	return &Validator{Key: key, Host: host, Port: port}
}

// Address formats the validator's network address as host:port, used as
// its identity key in the roster.
func (v *Validator) Address() string {
	return v.Host + ":" + strconv.Itoa(v.Port)
}

// WaitTime returns the currently drawn wait time, and whether one has
// been drawn at all.
func (v *Validator) WaitTime() (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.waitTime == nil {
		return 0, false
	}
	return *v.waitTime, true
}

// GenerateWaitTime draws a uniform integer wait time in [1, 10] seconds
// and stores it.
func (v *Validator) GenerateWaitTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := float64(1 + rand.Intn(10))
	v.waitTime = &t
	return t
}

// SetWaitTime assigns a remote validator's drawn value into the local
// roster entry (used by the coordinator after collecting WAIT_TIME
// replies).
func (v *Validator) SetWaitTime(t float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.waitTime = &t
}

// AddElapsedTime normalizes the timer by subtracting the round's minimum
// drawn time: every validator's remaining wait shrinks by delta seconds,
// the equalization phase of §4.5 step 2.
func (v *Validator) AddElapsedTime(delta float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.waitTime == nil {
		return
	}
	t := *v.waitTime - delta
	if t < 0 {
		t = 0
	}
	v.waitTime = &t
}

// ValidateBlock stores b as the block being timed and starts the
// one-shot wait timer, unless a block is already being timed. On timer
// fire the block is endorsed: moved into validatedBlocks.
func (v *Validator) ValidateBlock(b *chain.Block) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.blockToAdd != nil {
		return
	}
	v.blockToAdd = b
	wait := 0.0
	if v.waitTime != nil {
		wait = *v.waitTime
	}
	v.timer = time.AfterFunc(time.Duration(wait*float64(time.Second)), v.endorse)
}

func (v *Validator) endorse() {
	v.mu.Lock()
	block := v.blockToAdd
	if block == nil {
		v.mu.Unlock()
		return
	}
	v.validatedBlocks = append(v.validatedBlocks, block)
	v.blockToAdd = nil
	onEndorse := v.OnEndorse
	v.mu.Unlock()

	if onEndorse != nil {
		onEndorse(block)
	}
}

// Endorsed reports whether b is present in validatedBlocks — the
// "endorsement" relation of the GLOSSARY.
func (v *Validator) Endorsed(b *chain.Block) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, vb := range v.validatedBlocks {
		if vb.Hash == b.Hash {
			return true
		}
	}
	return false
}

// StopWaitTimer cancels the pending timer and clears the drawn wait time
// so the next round can redraw.
func (v *Validator) StopWaitTimer() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.waitTime = nil
	v.blockToAdd = nil
}
