package wallet

import (
	"time"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/crypto"
)

// Wallet holds a key pair and provides the signed-transaction-building
// helpers a voter or contract operator needs to drive the chain's
// request API surface.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded PKCS1 RSA public key — the "voter_key"
// identity used throughout the chain's data model (spec.md §3).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of
// SHA-256(pubkey DER)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx builds and signs a transaction invoking method on contractName
// with args, stamped with the current time. The canonical signing
// string (spec.md §6) is computed over exactly these fields by
// chain.Transaction.Sign.
func (w *Wallet) NewTx(contractName string, method chain.Method, args []string) (*chain.Transaction, error) {
	tx := chain.NewTransaction(w.pub.Hex(), contractName, method, args, float64(time.Now().UnixNano())/1e9)
	if err := tx.Sign(w.priv); err != nil {
		return nil, err
	}
	return tx, nil
}

// CreateContract builds a signed CREATE transaction for a new ballot.
func (w *Wallet) CreateContract(contractName string) (*chain.Transaction, error) {
	return w.NewTx(contractName, chain.MethodCreate, nil)
}

// AddCandidate builds a signed ADD_CANDIDATE transaction.
func (w *Wallet) AddCandidate(contractName, candidate string) (*chain.Transaction, error) {
	return w.NewTx(contractName, chain.MethodAddCandidate, []string{candidate})
}

// StartVoting builds a signed START_VOTING transaction.
func (w *Wallet) StartVoting(contractName string) (*chain.Transaction, error) {
	return w.NewTx(contractName, chain.MethodStartVoting, nil)
}

// Vote builds a signed VOTE transaction for candidate. args carries the
// voter's own key ahead of the candidate, matching the [voter_key,
// candidate] shape the chain's admission predicate and executor expect.
func (w *Wallet) Vote(contractName, candidate string) (*chain.Transaction, error) {
	return w.NewTx(contractName, chain.MethodVote, []string{w.pub.Hex(), candidate})
}

// FinishVoting builds a signed FINISH_VOTING transaction.
func (w *Wallet) FinishVoting(contractName string) (*chain.Transaction, error) {
	return w.NewTx(contractName, chain.MethodFinishVoting, nil)
}
