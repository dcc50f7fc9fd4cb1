// Package testutil provides an in-process multi-node fixture for tests
// across the module. Never import this in production code.
package testutil

import (
	"fmt"
	"net"
	"time"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/network"
	"github.com/tolelom/tolchain/poet"
	"github.com/tolelom/tolchain/server"
	"github.com/tolelom/tolchain/validator"
)

// Harness wires up a small cluster of real nodes (real TCP on loopback,
// real chain/validator/poet/server components) so integration tests can
// exercise gossip and PoET rounds without binding production ports or
// faking the transport. Grounded on
// tolelom-tolchain/internal/testutil/memdb.go's "test-only, never
// imported from production code" framing and
// tolelom-tolchain/tests/integration_test.go's multi-component wiring
// style — generalized from a single in-memory DB fixture to a cluster
// of full node stacks, since this chain has no storage layer to fake.
type Harness struct {
	Nodes   []*network.Node
	Servers []*server.Server
	Coords  []*poet.Coordinator
}

// NewHarness starts n nodes on loopback, each with its own chain,
// registers a validator for every node against every node's roster,
// connects every node to every other node, and returns the running
// cluster. Callers must call Close when done.
func NewHarness(n int) (*Harness, error) {
	h := &Harness{}

	type built struct {
		addr network.Addr
		node *network.Node
		key  string
	}
	var all []built

	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			h.Close()
			return nil, err
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		addr := network.Addr{Host: "127.0.0.1", Port: port}
		c := chain.NewChain()
		node := network.NewNode(addr, c)
		key := fmt.Sprintf("test-validator-key-%d", i)
		local := validator.New(key, addr.Host, addr.Port)
		node.RegisterValidator(local)

		all = append(all, built{addr: addr, node: node, key: key})
		h.Nodes = append(h.Nodes, node)
	}

	// cross-register every validator and peer on every node
	for _, a := range all {
		for _, b := range all {
			if a.addr == b.addr {
				continue
			}
			a.node.AddPeer(b.addr)
			a.node.AddValidator(validator.New(b.key, b.addr.Host, b.addr.Port))
		}
	}

	for i, a := range all {
		coord := poet.New(a.node)
		h.Coords = append(h.Coords, coord)

		srv := server.NewServer(a.node, fmt.Sprintf("%s:%d", a.addr.Host, a.addr.Port), coord)
		if err := srv.Start(); err != nil {
			h.Close()
			return nil, fmt.Errorf("start node %d: %w", i, err)
		}
		h.Servers = append(h.Servers, srv)
	}

	// give listeners a moment to become reachable before tests dial in
	time.Sleep(10 * time.Millisecond)
	return h, nil
}

// Close stops every server in the cluster.
func (h *Harness) Close() {
	for _, s := range h.Servers {
		if s != nil {
			s.Stop()
		}
	}
}
