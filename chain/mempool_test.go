package chain

import "testing"

func txFor(contract string, method Method, args []string, ts float64) *Transaction {
	return NewTransaction("voter-key", contract, method, args, ts)
}

func TestPendingPoolDedupes(t *testing.T) {
	p := newPendingPool()
	tx := txFor("ballot1", MethodCreate, nil, 1)
	if !p.add(tx) {
		t.Fatal("first add should succeed")
	}
	if p.add(tx) {
		t.Error("structurally identical transaction should be rejected as a duplicate")
	}
	if p.size() != 1 {
		t.Errorf("size: got %d want 1", p.size())
	}
	if !p.contains(tx) {
		t.Error("contains should report true for an admitted transaction")
	}
}

func TestPendingPoolPreservesOrder(t *testing.T) {
	p := newPendingPool()
	a := txFor("ballot1", MethodCreate, nil, 1)
	b := txFor("ballot1", MethodAddCandidate, []string{"alice"}, 2)
	c := txFor("ballot1", MethodAddCandidate, []string{"bob"}, 3)
	p.add(a)
	p.add(b)
	p.add(c)

	all := p.all()
	if len(all) != 3 || all[0] != a || all[1] != b || all[2] != c {
		t.Errorf("order: got %+v want [a b c] in admission order", all)
	}
}

func TestPendingPoolRemoveCommitted(t *testing.T) {
	p := newPendingPool()
	a := txFor("ballot1", MethodCreate, nil, 1)
	b := txFor("ballot1", MethodAddCandidate, []string{"alice"}, 2)
	c := txFor("ballot1", MethodAddCandidate, []string{"bob"}, 3)
	p.add(a)
	p.add(b)
	p.add(c)

	p.removeCommitted([]*Transaction{a, c})
	all := p.all()
	if len(all) != 1 || all[0] != b {
		t.Errorf("after removeCommitted: got %+v want [b]", all)
	}
	if p.contains(a) || p.contains(c) {
		t.Error("removed transactions should no longer be considered present")
	}

	// A committed transaction's dedupe key must be free to re-admit, since
	// it represents a different logical event the second time around.
	if !p.add(txFor("ballot1", MethodCreate, nil, 1)) {
		t.Error("dedupe key should be released after removeCommitted")
	}
}

func TestPendingPoolReplace(t *testing.T) {
	p := newPendingPool()
	p.add(txFor("ballot1", MethodCreate, nil, 1))

	repl := []*Transaction{
		txFor("ballot2", MethodCreate, nil, 10),
		txFor("ballot2", MethodAddCandidate, []string{"carol"}, 11),
	}
	p.replace(repl)

	if p.size() != 2 {
		t.Fatalf("size after replace: got %d want 2", p.size())
	}
	if p.contains(txFor("ballot1", MethodCreate, nil, 1)) {
		t.Error("replace should discard the previous pool contents")
	}
	for _, tx := range repl {
		if !p.contains(tx) {
			t.Errorf("replace should admit %+v", tx)
		}
	}
}

func TestPendingPoolRemoveCommittedEmptyIsNoop(t *testing.T) {
	p := newPendingPool()
	tx := txFor("ballot1", MethodCreate, nil, 1)
	p.add(tx)
	p.removeCommitted(nil)
	if p.size() != 1 {
		t.Error("removeCommitted with no committed transactions must not mutate the pool")
	}
}
