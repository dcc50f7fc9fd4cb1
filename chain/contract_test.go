package chain

import (
	"errors"
	"testing"
)

func TestContractLifecycle(t *testing.T) {
	c := NewContract("mayor-2026")
	if c.State != StateNotStarted {
		t.Fatalf("new contract state: got %v want %v", c.State, StateNotStarted)
	}
	if err := c.AddCandidate("alice"); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}
	if err := c.AddCandidate("alice"); !errors.Is(err, ErrCandidateExists) {
		t.Errorf("duplicate candidate: got %v want ErrCandidateExists", err)
	}

	if err := c.Vote("voter1", "alice"); !errors.Is(err, ErrVotingNotStarted) {
		t.Errorf("vote before start: got %v want ErrVotingNotStarted", err)
	}

	c.StartVoting()
	if !c.InProgress() {
		t.Error("contract should be in progress after StartVoting")
	}
	if err := c.Vote("voter1", "bob"); !errors.Is(err, ErrCandidateNotFound) {
		t.Errorf("vote for unknown candidate: got %v want ErrCandidateNotFound", err)
	}
	if err := c.Vote("voter1", "alice"); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if err := c.Vote("voter1", "alice"); !errors.Is(err, ErrVoterAlreadyVoted) {
		t.Errorf("double vote: got %v want ErrVoterAlreadyVoted", err)
	}

	if _, err := c.Results(); !errors.Is(err, ErrVotingNotFinished) {
		t.Errorf("results before finish: got %v want ErrVotingNotFinished", err)
	}

	c.FinishVoting()
	if !c.Finished() {
		t.Error("contract should be finished")
	}
	if err := c.Vote("voter2", "alice"); !errors.Is(err, ErrVotingFinished) {
		t.Errorf("vote after finish: got %v want ErrVotingFinished", err)
	}

	results, err := c.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if results["alice"] != 1 {
		t.Errorf("alice tally: got %d want 1", results["alice"])
	}
}

func TestContractWinnerTieBreaksByInsertionOrder(t *testing.T) {
	c := NewContract("tie-test")
	c.AddCandidate("alice")
	c.AddCandidate("bob")
	c.StartVoting()
	c.Vote("v1", "alice")
	c.Vote("v2", "bob")
	c.FinishVoting()

	winner, err := c.Winner()
	if err != nil {
		t.Fatalf("Winner: %v", err)
	}
	if winner != "alice" {
		t.Errorf("tied winner: got %q want %q (earliest insertion order)", winner, "alice")
	}
}

func TestContractClone(t *testing.T) {
	c := NewContract("clone-test")
	c.AddCandidate("alice")
	c.StartVoting()
	c.Vote("v1", "alice")

	cp := c.Clone()
	cp.Vote("v2", "alice")

	if c.Tally["alice"] == cp.Tally["alice"] {
		t.Error("clone should be independent of the original")
	}
}
