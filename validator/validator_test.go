package validator

import (
	"sync"
	"testing"
	"time"

	"github.com/tolelom/tolchain/chain"
)

func TestNewAndAddress(t *testing.T) {
	v := New("key-hex", "127.0.0.1", 9001)
	if v.Address() != "127.0.0.1:9001" {
		t.Errorf("Address: got %q want %q", v.Address(), "127.0.0.1:9001")
	}
	if _, drawn := v.WaitTime(); drawn {
		t.Error("a fresh validator should have no drawn wait time")
	}
}

func TestGenerateWaitTimeRange(t *testing.T) {
	v := New("key", "h", 1)
	for i := 0; i < 50; i++ {
		wt := v.GenerateWaitTime()
		if wt < 1 || wt > 10 {
			t.Fatalf("GenerateWaitTime out of range: got %v want [1,10]", wt)
		}
	}
	got, drawn := v.WaitTime()
	if !drawn {
		t.Error("WaitTime should report drawn after GenerateWaitTime")
	}
	if got < 1 || got > 10 {
		t.Errorf("stored wait time out of range: %v", got)
	}
}

func TestSetWaitTime(t *testing.T) {
	v := New("key", "h", 1)
	v.SetWaitTime(7)
	got, drawn := v.WaitTime()
	if !drawn || got != 7 {
		t.Errorf("SetWaitTime: got (%v, %v) want (7, true)", got, drawn)
	}
}

func TestAddElapsedTimeSubtractsAndFloors(t *testing.T) {
	v := New("key", "h", 1)
	v.SetWaitTime(5)
	v.AddElapsedTime(2)
	got, _ := v.WaitTime()
	if got != 3 {
		t.Errorf("after subtracting 2 from 5: got %v want 3", got)
	}

	v.AddElapsedTime(100)
	got, _ = v.WaitTime()
	if got != 0 {
		t.Errorf("AddElapsedTime should floor at 0, got %v", got)
	}
}

func TestAddElapsedTimeNoopWithoutDraw(t *testing.T) {
	v := New("key", "h", 1)
	v.AddElapsedTime(5) // must not panic on a nil waitTime
	if _, drawn := v.WaitTime(); drawn {
		t.Error("AddElapsedTime should not draw a wait time out of thin air")
	}
}

func TestValidateBlockFiresOnEndorseAfterWait(t *testing.T) {
	v := New("key", "h", 1)
	v.SetWaitTime(0) // fire immediately

	var mu sync.Mutex
	var endorsed *chain.Block
	done := make(chan struct{})
	v.OnEndorse = func(b *chain.Block) {
		mu.Lock()
		endorsed = b
		mu.Unlock()
		close(done)
	}

	b := chain.NewBlock(nil, chain.GenesisPrevHash, 1)
	v.ValidateBlock(b)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnEndorse was not called in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if endorsed == nil || endorsed.Hash != b.Hash {
		t.Error("endorsed block should match the one passed to ValidateBlock")
	}
	if !v.Endorsed(b) {
		t.Error("Endorsed should report true once the timer has fired")
	}
}

func TestValidateBlockIgnoresSecondCallWhileTiming(t *testing.T) {
	v := New("key", "h", 1)
	v.SetWaitTime(60) // long enough not to fire during the test

	first := chain.NewBlock(nil, chain.GenesisPrevHash, 1)
	second := chain.NewBlock(nil, chain.GenesisPrevHash, 2)
	v.ValidateBlock(first)
	v.ValidateBlock(second) // should be a no-op; a block is already being timed

	v.mu.Lock()
	timed := v.blockToAdd
	v.mu.Unlock()
	if timed != first {
		t.Error("a second ValidateBlock while timing should leave the first block in place")
	}

	v.StopWaitTimer()
}

func TestStopWaitTimerClearsState(t *testing.T) {
	v := New("key", "h", 1)
	v.SetWaitTime(60)
	b := chain.NewBlock(nil, chain.GenesisPrevHash, 1)
	v.ValidateBlock(b)

	v.StopWaitTimer()
	if _, drawn := v.WaitTime(); drawn {
		t.Error("StopWaitTimer should clear the drawn wait time")
	}

	// A fresh ValidateBlock after stopping should be accepted again (prior
	// blockToAdd was cleared).
	called := make(chan struct{})
	v.OnEndorse = func(*chain.Block) { close(called) }
	v.SetWaitTime(0)
	v.ValidateBlock(chain.NewBlock(nil, chain.GenesisPrevHash, 3))

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("ValidateBlock after StopWaitTimer should still be able to fire")
	}
}
