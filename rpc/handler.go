package rpc

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/network"
	"github.com/tolelom/tolchain/validator"
)

// RoundTrigger is notified when a request-submitted transaction fills
// the pending pool, mirroring server.RoundTrigger without importing
// package server (which itself must not import rpc).
type RoundTrigger interface {
	TriggerRound()
}

// Handler holds all dependencies needed to serve RPC methods over the
// surface named in spec.md §6 and concretized in SPEC_FULL.md §5.
type Handler struct {
	node  *network.Node
	round RoundTrigger
}

// NewHandler creates an RPC Handler bound to node's chain and roster.
func NewHandler(node *network.Node, round RoundTrigger) *Handler {
	return &Handler{node: node, round: round}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "createContract":
		return h.submitTx(req, chain.MethodCreate)
	case "addCandidate":
		return h.submitTx(req, chain.MethodAddCandidate)
	case "startVoting":
		return h.submitTx(req, chain.MethodStartVoting)
	case "vote":
		return h.submitTx(req, chain.MethodVote)
	case "finishVoting":
		return h.submitTx(req, chain.MethodFinishVoting)

	case "registerValidator":
		return h.registerValidator(req)
	case "connectPeer":
		return h.connectPeer(req)
	case "sync":
		return h.sync(req)

	case "getChain":
		return okResponse(req.ID, h.node.Ch.Snapshot().Blocks)
	case "getPendingTransactions":
		return okResponse(req.ID, h.node.Ch.Snapshot().Pending)
	case "getPeers":
		return okResponse(req.ID, h.node.Peers())
	case "getValidators":
		return h.getValidators(req)
	case "getContractResults":
		return h.getContractResults(req)
	case "getWinner":
		return h.getWinner(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// txParams is the shared request shape for every contract-method
// submission: the caller supplies every field of an already-signed
// transaction except the method, which the RPC method name selects. The
// timestamp and signature are filled in client-side by the wallet layer
// (spec.md §6's canonical signing string is computed over these fields
// plus the method).
type txParams struct {
	VoterKey     string   `json:"voter_key"`
	ContractName string   `json:"contract_name"`
	Args         []string `json:"args"`
	Timestamp    float64  `json:"timestamp"`
	Signature    string   `json:"signature"`
}

// submitTx decodes a signed, pre-built transaction envelope and admits
// it to the local chain, broadcasting and triggering a round exactly as
// the P2P NEW_TRANSACTION handler does (spec.md §6: "all return
// success/failure plus one of the status values").
func (h *Handler) submitTx(req Request, method chain.Method) Response {
	var p txParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if p.VoterKey == "" || p.ContractName == "" || p.Signature == "" {
		return errResponse(req.ID, CodeInvalidParams, "voter_key, contract_name and signature are required")
	}
	tx := chain.NewTransaction(p.VoterKey, p.ContractName, method, p.Args, p.Timestamp)
	tx.Signature = p.Signature

	status := h.node.Ch.AddTransaction(tx)
	accepted := status != chain.StatusIgnored
	if accepted {
		for _, peer := range h.node.Peers() {
			target := fmt.Sprintf("%s:%d", peer.Host, peer.Port)
			msg := network.Message{Type: network.MsgNewTransaction, Transaction: tx}
			if err := network.SendToTLS(target, msg, h.node.TLSConfig()); err != nil {
				log.Printf("[rpc] send to %s refused: %v", target, err)
			}
		}
	}
	if accepted && h.round != nil && status == chain.StatusNewBlock {
		h.round.TriggerRound()
	}
	return okResponse(req.ID, map[string]any{"accepted": accepted, "status": status})
}

func (h *Handler) registerValidator(req Request) Response {
	var p struct {
		Key  string `json:"key"`
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if p.Key == "" || p.Host == "" || p.Port == 0 {
		return errResponse(req.ID, CodeInvalidParams, "key, host and port are required")
	}
	ok := h.node.AddValidator(validator.New(p.Key, p.Host, p.Port))
	return okResponse(req.ID, map[string]any{"accepted": ok})
}

func (h *Handler) connectPeer(req Request) Response {
	var p struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if p.Host == "" || p.Port == 0 {
		return errResponse(req.ID, CodeInvalidParams, "host and port are required")
	}
	ok := h.node.AddPeer(network.Addr{Host: p.Host, Port: p.Port})
	return okResponse(req.ID, map[string]any{"accepted": ok})
}

// sync requests a catch-up SYNC exchange with a named peer and reports
// whether the local chain changed as a result. Unlike the P2P SYNC
// message (which replies on the same already-open connection), this is
// a client-initiated request, so it dials out synchronously.
func (h *Handler) sync(req Request) Response {
	var p struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if p.Host == "" || p.Port == 0 {
		return errResponse(req.ID, CodeInvalidParams, "host and port are required")
	}
	target := fmt.Sprintf("%s:%d", p.Host, p.Port)
	conn, err := network.DialTLS(target, h.node.TLSConfig())
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	defer conn.Close()

	if err := conn.Send(network.Message{Type: network.MsgSync}); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	changed := false
	for i := 0; i < 2; i++ {
		reply, err := conn.Receive()
		if err != nil {
			break
		}
		switch reply.Type {
		case network.MsgBlockchain:
			if reply.Blockchain != nil {
				peer := chain.Snapshot{Blocks: reply.Blockchain.Chain, Pending: reply.Blockchain.Pending, Contracts: reply.Blockchain.Contracts}
				if h.node.SyncFrom(peer) {
					changed = true
				}
			}
		case network.MsgPendingTransactions:
			for _, tx := range reply.Transactions {
				h.node.Ch.AddTransaction(tx)
			}
		}
	}
	return okResponse(req.ID, map[string]any{"accepted": true, "changed": changed})
}

func (h *Handler) getValidators(req Request) Response {
	out := make([]map[string]any, 0)
	for _, v := range h.node.Validators() {
		out = append(out, map[string]any{"key": v.Key, "address": v.Address()})
	}
	return okResponse(req.ID, out)
}

func (h *Handler) getContractResults(req Request) Response {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	c, ok := h.node.Ch.Contract(p.Name)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown contract %q", p.Name))
	}
	results, err := c.Results()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"name": c.Name, "state": c.State, "results": results})
}

func (h *Handler) getWinner(req Request) Response {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	c, ok := h.node.Ch.Contract(p.Name)
	if !ok {
		return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown contract %q", p.Name))
	}
	winner, err := c.Winner()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"name": c.Name, "winner": winner})
}
