package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/crypto"
	"github.com/tolelom/tolchain/network"
	"github.com/tolelom/tolchain/wallet"
)

type fakeRound struct{ calls int }

func (f *fakeRound) TriggerRound() { f.calls++ }

func mustParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newTestHandler(t *testing.T) (*Handler, *network.Node) {
	t.Helper()
	c := chain.NewChain()
	node := network.NewNode(network.Addr{Host: "127.0.0.1", Port: 9000}, c)
	return NewHandler(node, &fakeRound{}), node
}

func signedTxParams(t *testing.T, w *wallet.Wallet, tx *chain.Transaction) json.RawMessage {
	t.Helper()
	return mustParams(t, map[string]any{
		"voter_key":     tx.VoterKey,
		"contract_name": tx.ContractName,
		"args":          tx.Args,
		"timestamp":     tx.Timestamp,
		"signature":     tx.Signature,
	})
}

func TestDispatchUnknownMethod(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Dispatch(Request{ID: 1, Method: "doesNotExist"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestSubmitTxRejectsMissingFields(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Dispatch(Request{ID: 1, Method: "createContract", Params: mustParams(t, map[string]any{})})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestFullVotingFlowThroughRPC(t *testing.T) {
	h, _ := newTestHandler(t)

	owner, err := wallet.Generate()
	require.NoError(t, err)
	voter1, err := wallet.Generate()
	require.NoError(t, err)
	voter2, err := wallet.Generate()
	require.NoError(t, err)

	create, err := owner.CreateContract("mayor-2026")
	require.NoError(t, err)
	resp := h.Dispatch(Request{ID: 1, Method: "createContract", Params: signedTxParams(t, owner, create)})
	assertAccepted(t, resp)

	addA, err := owner.AddCandidate("mayor-2026", "alice")
	require.NoError(t, err)
	assertAccepted(t, h.Dispatch(Request{ID: 2, Method: "addCandidate", Params: signedTxParams(t, owner, addA)}))
	addB, err := owner.AddCandidate("mayor-2026", "bob")
	require.NoError(t, err)
	assertAccepted(t, h.Dispatch(Request{ID: 3, Method: "addCandidate", Params: signedTxParams(t, owner, addB)}))

	start, err := owner.StartVoting("mayor-2026")
	require.NoError(t, err)
	assertAccepted(t, h.Dispatch(Request{ID: 4, Method: "startVoting", Params: signedTxParams(t, owner, start)}))

	// Seal the first block directly on the chain (no PoET round is driven
	// in this unit test — that's poet.Coordinator's job).
	sealChain(t, h)

	vote1, err := voter1.Vote("mayor-2026", "alice")
	require.NoError(t, err)
	assertAccepted(t, h.Dispatch(Request{ID: 5, Method: "vote", Params: signedTxParams(t, voter1, vote1)}))
	vote2, err := voter2.Vote("mayor-2026", "bob")
	require.NoError(t, err)
	assertAccepted(t, h.Dispatch(Request{ID: 6, Method: "vote", Params: signedTxParams(t, voter2, vote2)}))

	finish, err := owner.FinishVoting("mayor-2026")
	require.NoError(t, err)
	assertAccepted(t, h.Dispatch(Request{ID: 7, Method: "finishVoting", Params: signedTxParams(t, owner, finish)}))
	sealChain(t, h)

	resp = h.Dispatch(Request{ID: 8, Method: "getWinner", Params: mustParams(t, map[string]string{"name": "mayor-2026"})})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok, "unexpected result type: %T", resp.Result)
	assert.Contains(t, []any{"alice", "bob"}, result["winner"])
}

func assertAccepted(t *testing.T, resp Response) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected RPC error: %+v", resp.Error)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok, "unexpected result type: %T", resp.Result)
	accepted, _ := result["accepted"].(bool)
	require.True(t, accepted, "transaction was not accepted: %+v", result)
}

// sealChain reaches into the handler's node to seal and append whatever is
// pending, standing in for the PoET round this package never drives itself.
func sealChain(t *testing.T, h *Handler) {
	t.Helper()
	b := h.node.Ch.SealBlock()
	require.NoError(t, h.node.Ch.AppendBlock(b))
}

func TestRegisterValidatorAndConnectPeer(t *testing.T) {
	h, node := newTestHandler(t)

	resp := h.Dispatch(Request{ID: 1, Method: "registerValidator", Params: mustParams(t, map[string]any{
		"key": "remote-key", "host": "127.0.0.1", "port": 9100,
	})})
	assertAccepted(t, resp)
	assert.Len(t, node.Validators(), 1)

	resp = h.Dispatch(Request{ID: 2, Method: "connectPeer", Params: mustParams(t, map[string]any{
		"host": "127.0.0.1", "port": 9200,
	})})
	assertAccepted(t, resp)
	assert.Len(t, node.Peers(), 1)
}

func TestGetContractResultsUnknownContract(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Dispatch(Request{ID: 1, Method: "getContractResults", Params: mustParams(t, map[string]string{"name": "nope"})})
	assert.NotNil(t, resp.Error, "expected an error for an unknown contract")
}

func TestGetChainAndPending(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.Dispatch(Request{ID: 1, Method: "getChain"})
	require.Nil(t, resp.Error)
	blocks, ok := resp.Result.([]*chain.Block)
	require.True(t, ok)
	assert.Len(t, blocks, 1, "want a single genesis block")

	resp = h.Dispatch(Request{ID: 2, Method: "getPendingTransactions"})
	assert.Nil(t, resp.Error)
}

func TestTriggerRoundFiresWhenPoolFills(t *testing.T) {
	c := chain.NewChain()
	node := network.NewNode(network.Addr{Host: "127.0.0.1", Port: 9000}, c)
	round := &fakeRound{}
	h := NewHandler(node, round)

	for i := 0; i < chain.BlockCapacity; i++ {
		priv, _, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		tx := chain.NewTransaction(priv.Public().Hex(), "contract-"+string(rune('a'+i)), chain.MethodCreate, nil, float64(i))
		require.NoError(t, tx.Sign(priv))
		h.Dispatch(Request{ID: i, Method: "createContract", Params: signedTxParams(t, nil, tx)})
	}
	assert.NotZero(t, round.calls, "expected TriggerRound to fire once the pending pool reached BlockCapacity")
}
