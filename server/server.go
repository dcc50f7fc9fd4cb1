// Package server implements the P2P listener and message dispatch table
// of spec.md §4.7.
package server

import (
	"crypto/tls"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/network"
	"github.com/tolelom/tolchain/validator"
)

// RoundTrigger is notified when transaction admission signals that a
// PoET round is now due (spec.md §4.1's NEW_BLOCK status). Implemented
// by poet.Coordinator; kept as a narrow interface here to avoid an
// import cycle between server and poet.
type RoundTrigger interface {
	TriggerRound()
}

// Server owns the listening TCP socket. Each accepted connection is
// served on its own goroutine and handles exactly one framed message
// before closing, matching original_source/src/p2p/p2p_server.py's
// handle_connection (a fresh connection per message, not a persistent
// read loop) — grounded also on
// tolelom-tolchain/network/node.go's acceptLoop/readLoop shape for the
// listener lifecycle (Start/Stop, stopCh, panic-isolated per-connection
// goroutine).
type Server struct {
	node  *network.Node
	addr  string
	round RoundTrigger

	listener net.Listener
	stopCh   chan struct{}
}

// NewServer returns a Server that will listen on addr and dispatch into
// node. round is notified whenever an admitted transaction fills the
// pending pool to BlockCapacity.
func NewServer(node *network.Node, addr string, round RoundTrigger) *Server {
	return &Server{node: node, addr: addr, round: round, stopCh: make(chan struct{})}
}

// Start begins accepting connections in the background. The listener is
// mTLS when the node carries a TLS config (SetTLSConfig), plain TCP
// otherwise, matching tolelom-tolchain/network/node.go's Start.
func (s *Server) Start() error {
	var ln net.Listener
	var err error
	if tlsCfg := s.node.TLSConfig(); tlsCfg != nil {
		ln, err = tls.Listen("tcp", s.addr, tlsCfg)
	} else {
		ln, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		return err
	}
	s.listener = ln
	log.Printf("[server] listening on %s", s.addr)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, ending acceptLoop.
func (s *Server) Stop() {
	close(s.stopCh)
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				log.Printf("[server] accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		go s.handleConnection(network.NewConn(conn))
	}
}

func (s *Server) handleConnection(conn *network.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[server] handleConnection panic: %v", r)
		}
		conn.Close()
	}()

	msg, err := conn.Receive()
	if err != nil {
		log.Printf("[server] receive: %v", err)
		return
	}
	log.Printf("[server] received %s from %s", msg.Type, conn.RemoteAddr())
	s.dispatch(conn, msg)
}

// dispatch implements the message taxonomy of spec.md §4.7.
func (s *Server) dispatch(conn *network.Conn, msg network.Message) {
	switch msg.Type {
	case network.MsgNewTransaction:
		s.handleNewTransaction(msg)
	case network.MsgNewBlock:
		s.handleNewBlock(msg)
	case network.MsgNewPeer:
		s.handleNewPeer(msg)
	case network.MsgNewValidator:
		s.handleNewValidator(msg)
	case network.MsgGetBlockchain:
		s.handleGetBlockchain(msg)
	case network.MsgBlockchain:
		s.handleBlockchain(msg)
	case network.MsgGetPendingTransactions:
		s.handleGetPendingTransactions(msg)
	case network.MsgPendingTransactions:
		s.handlePendingTransactions(msg)
	case network.MsgContracts:
		s.handleContracts(msg)
	case network.MsgValidateNewBlock:
		s.handleValidateNewBlock(msg)
	case network.MsgGenerateWaitTime:
		s.handleGenerateWaitTime(msg)
	case network.MsgWaitTime:
		s.handleWaitTime(msg)
	case network.MsgAddElapsedTime:
		s.handleAddElapsedTime(msg)
	case network.MsgSync:
		s.handleSync(conn)
	default:
		log.Printf("[server] unknown message type %q", msg.Type)
	}
}

func (s *Server) handleNewTransaction(msg network.Message) {
	if msg.Transaction == nil {
		return
	}
	status := s.node.Ch.AddTransaction(msg.Transaction)
	if status == chain.StatusIgnored {
		return
	}
	s.broadcast(msg)
	if status == chain.StatusNewBlock && s.round != nil {
		s.round.TriggerRound()
	}
}

func (s *Server) handleNewBlock(msg network.Message) {
	if msg.Block == nil {
		return
	}
	if s.node.AddBlock(msg.Block) {
		s.broadcast(msg)
	}
}

func (s *Server) handleNewPeer(msg network.Message) {
	if msg.Peer == nil {
		return
	}
	s.node.AddPeer(*msg.Peer)
}

func (s *Server) handleNewValidator(msg network.Message) {
	if msg.Validator == nil {
		return
	}
	v := validator.New(msg.Validator.Key, msg.Validator.Addr.Host, msg.Validator.Addr.Port)
	if s.node.AddValidator(v) {
		s.broadcast(msg)
	}
}

func (s *Server) handleGetBlockchain(msg network.Message) {
	if msg.Address == nil {
		return
	}
	snap := s.node.Ch.Snapshot()
	reply := network.Message{Type: network.MsgBlockchain, Blockchain: toWireSnapshot(snap)}
	s.sendTo(*msg.Address, reply)
}

func (s *Server) handleBlockchain(msg network.Message) {
	if msg.Blockchain == nil {
		return
	}
	peer := fromWireSnapshot(*msg.Blockchain)
	if s.node.SyncFrom(peer) {
		s.broadcast(network.Message{Type: network.MsgBlockchain, Blockchain: msg.Blockchain})
	}
}

func (s *Server) handleGetPendingTransactions(msg network.Message) {
	if msg.Address == nil {
		return
	}
	snap := s.node.Ch.Snapshot()
	reply := network.Message{Type: network.MsgPendingTransactions, Transactions: snap.Pending}
	s.sendTo(*msg.Address, reply)
}

func (s *Server) handlePendingTransactions(msg network.Message) {
	for _, tx := range msg.Transactions {
		s.node.Ch.AddTransaction(tx)
	}
}

func (s *Server) handleContracts(msg network.Message) {
	if msg.Contracts == nil {
		return
	}
	s.node.Ch.MergeContracts(msg.Contracts)
}

func (s *Server) handleValidateNewBlock(msg network.Message) {
	if msg.Block == nil {
		return
	}
	local := s.node.LocalValidator()
	if local == nil {
		return
	}
	local.ValidateBlock(msg.Block)
}

func (s *Server) handleGenerateWaitTime(msg network.Message) {
	if msg.Address == nil {
		return
	}
	local := s.node.LocalValidator()
	if local == nil {
		return
	}
	wait := local.GenerateWaitTime()
	reply := network.Message{
		Type:     network.MsgWaitTime,
		WaitTime: &wait,
		Address:  &s.node.Self,
	}
	s.sendTo(*msg.Address, reply)
}

func (s *Server) handleWaitTime(msg network.Message) {
	if msg.WaitTime == nil || msg.Address == nil {
		return
	}
	addr := msg.Address.Host + ":" + strconv.Itoa(msg.Address.Port)
	if v, ok := s.node.ValidatorAt(addr); ok {
		v.SetWaitTime(*msg.WaitTime)
		s.node.NotifyWaitTime(addr)
	}
}

func (s *Server) handleAddElapsedTime(msg network.Message) {
	if msg.Time == nil {
		return
	}
	s.node.AddElapsedTimeAll(*msg.Time)
}

func (s *Server) handleSync(conn *network.Conn) {
	snap := s.node.Ch.Snapshot()
	if err := conn.Send(network.Message{Type: network.MsgBlockchain, Blockchain: toWireSnapshot(snap)}); err != nil {
		log.Printf("[server] sync reply (blockchain): %v", err)
		return
	}
	if err := conn.Send(network.Message{Type: network.MsgPendingTransactions, Transactions: snap.Pending}); err != nil {
		log.Printf("[server] sync reply (pending): %v", err)
	}
}

// broadcast re-gossips msg to every peer (spec.md §4.7's re-broadcast
// effects).
func (s *Server) broadcast(msg network.Message) {
	for _, peer := range s.node.Peers() {
		s.sendTo(peer, msg)
	}
}

func (s *Server) sendTo(addr network.Addr, msg network.Message) {
	target := addr.Host + ":" + strconv.Itoa(addr.Port)
	if err := network.SendToTLS(target, msg, s.node.TLSConfig()); err != nil {
		log.Printf("[server] send to %s refused: %v", target, err)
	}
}

// ConnectToPeer adds addr to the peer set, announces this node to it,
// then requests a catch-up sync (spec.md §4.7's peer bootstrapping).
func (s *Server) ConnectToPeer(addr network.Addr) {
	if !s.node.AddPeer(addr) {
		return
	}
	s.sendTo(addr, network.Message{Type: network.MsgNewPeer, Peer: &s.node.Self})
	s.sendTo(addr, network.Message{Type: network.MsgGetBlockchain, Address: &s.node.Self})
}

func toWireSnapshot(s chain.Snapshot) *network.ChainSnapshot {
	return &network.ChainSnapshot{Chain: s.Blocks, Pending: s.Pending, Contracts: s.Contracts}
}

func fromWireSnapshot(w network.ChainSnapshot) chain.Snapshot {
	return chain.Snapshot{Blocks: w.Chain, Pending: w.Pending, Contracts: w.Contracts}
}
