package chain

// pendingPool is the chain's ordered, duplicate-suppressed set of admitted,
// not-yet-committed transactions. It is not internally synchronized: per
// spec.md §9's design note on the source's "unsafe parallel mutation of
// pending pool", every operation on it must happen under Chain.mu.
//
// Grounded on tolelom-tolchain/core/mempool.go's insertion-ordered
// id-slice-plus-map shape, generalized from ID-keyed dedupe to full
// structural-equality dedupe (spec.md §3).
type pendingPool struct {
	order []*Transaction
	seen  map[string]bool // dedupeKey -> present
}

func newPendingPool() *pendingPool {
	return &pendingPool{seen: make(map[string]bool)}
}

// contains reports whether a structurally identical transaction is already
// pending.
func (p *pendingPool) contains(tx *Transaction) bool {
	return p.seen[tx.dedupeKey()]
}

// add appends tx if it is not already present. Returns false if it was a
// duplicate (the caller should treat this as IGNORED).
func (p *pendingPool) add(tx *Transaction) bool {
	key := tx.dedupeKey()
	if p.seen[key] {
		return false
	}
	p.seen[key] = true
	p.order = append(p.order, tx)
	return true
}

// all returns the pending transactions in admission order.
func (p *pendingPool) all() []*Transaction {
	return p.order
}

// size returns the number of pending transactions.
func (p *pendingPool) size() int {
	return len(p.order)
}

// removeCommitted drops every transaction in committed from the pool.
func (p *pendingPool) removeCommitted(committed []*Transaction) {
	if len(committed) == 0 {
		return
	}
	drop := make(map[string]bool, len(committed))
	for _, tx := range committed {
		drop[tx.dedupeKey()] = true
	}
	filtered := p.order[:0]
	for _, tx := range p.order {
		key := tx.dedupeKey()
		if drop[key] {
			delete(p.seen, key)
			continue
		}
		filtered = append(filtered, tx)
	}
	p.order = filtered
}

// replace discards the current pool contents and repopulates from txs
// verbatim, without running the admission predicate.
func (p *pendingPool) replace(txs []*Transaction) {
	p.order = nil
	p.seen = make(map[string]bool, len(txs))
	for _, tx := range txs {
		p.order = append(p.order, tx)
		p.seen[tx.dedupeKey()] = true
	}
}
