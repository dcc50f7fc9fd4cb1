package chain

import (
	"testing"

	"github.com/tolelom/tolchain/crypto"
)

func signedTx(t *testing.T, priv crypto.PrivateKey, contract string, method Method, args []string) *Transaction {
	t.Helper()
	tx := NewTransaction(priv.Public().Hex(), contract, method, args, 1000)
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tx
}

func TestTransactionSignVerify(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := signedTx(t, priv, "mayor-2026", MethodVote, []string{priv.Public().Hex(), "alice"})
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	tx.Args[1] = "bob"
	if err := tx.Verify(); err == nil {
		t.Error("tampered args should fail verification")
	}
}

func TestTransactionEqual(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	a := signedTx(t, priv, "mayor-2026", MethodCreate, nil)
	b := signedTx(t, priv, "mayor-2026", MethodCreate, nil)
	if !a.Equal(b) {
		t.Error("structurally identical transactions should be equal")
	}

	c := signedTx(t, priv, "mayor-2027", MethodCreate, nil)
	if a.Equal(c) {
		t.Error("transactions for different contracts should not be equal")
	}
}

func TestVerifyMissingFields(t *testing.T) {
	tx := NewTransaction("", "c", MethodCreate, nil, 0)
	if err := tx.Verify(); err == nil {
		t.Error("missing voter_key should fail verification")
	}
	tx.VoterKey = "deadbeef"
	if err := tx.Verify(); err == nil {
		t.Error("missing signature should fail verification")
	}
}
