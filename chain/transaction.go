package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tolelom/tolchain/crypto"
)

// Method identifies the contract method a Transaction invokes.
type Method string

const (
	MethodCreate       Method = "CREATE"
	MethodAddCandidate Method = "ADD_CANDIDATE"
	MethodStartVoting  Method = "START_VOTING"
	MethodVote         Method = "VOTE"
	MethodFinishVoting Method = "FINISH_VOTING"
)

// Transaction is a signed intent to invoke one contract method.
//
// Args is method-specific: empty for CREATE/START_VOTING/FINISH_VOTING, a
// single candidate name for ADD_CANDIDATE, and [voteSubjectKeyHex,
// candidateName] for VOTE (args[0] is the hex PKCS1 public key the vote is
// cast under, not necessarily the signer's own key).
type Transaction struct {
	VoterKey       string   `json:"voter_key"`
	ContractName   string   `json:"contract_name"`
	ContractMethod Method   `json:"contract_method"`
	Args           []string `json:"args"`
	Timestamp      float64  `json:"timestamp"`
	Signature      string   `json:"signature"`
}

// NewTransaction builds an unsigned transaction. Call Sign before submitting.
func NewTransaction(voterKey string, contractName string, method Method, args []string, timestamp float64) *Transaction {
	if args == nil {
		args = []string{}
	}
	return &Transaction{
		VoterKey:       voterKey,
		ContractName:   contractName,
		ContractMethod: method,
		Args:           args,
		Timestamp:      timestamp,
	}
}

// signingString builds the canonical concatenation covered by the signature:
// hex(voter_key_pkcs1) ‖ contract_name ‖ method ‖ args ‖ timestamp, where
// args is rendered as "[a,b,...]" (comma-joined, unquoted) and timestamp in
// shortest decimal form.
func (tx *Transaction) signingString() string {
	var argsRepr strings.Builder
	argsRepr.WriteByte('[')
	for i, a := range tx.Args {
		if i > 0 {
			argsRepr.WriteByte(',')
		}
		argsRepr.WriteString(a)
	}
	argsRepr.WriteByte(']')

	var b strings.Builder
	b.WriteString(tx.VoterKey)
	b.WriteString(tx.ContractName)
	b.WriteString(string(tx.ContractMethod))
	b.WriteString(argsRepr.String())
	b.WriteString(strconv.FormatFloat(tx.Timestamp, 'f', -1, 64))
	return b.String()
}

// Sign computes the signature over the canonical signing string.
func (tx *Transaction) Sign(priv crypto.PrivateKey) error {
	sig, err := crypto.Sign(priv, []byte(tx.signingString()))
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signature = sig
	return nil
}

// Verify checks that the signature verifies under VoterKey.
func (tx *Transaction) Verify() error {
	if tx.VoterKey == "" {
		return errors.New("missing voter_key")
	}
	if tx.Signature == "" {
		return errors.New("missing signature")
	}
	pub, err := crypto.PubKeyFromHex(tx.VoterKey)
	if err != nil {
		return fmt.Errorf("invalid voter_key (must be RSA pkcs1 hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.signingString()), tx.Signature)
}

// Equal reports structural equality over all fields, including Signature —
// two transactions that differ only by signature are not equal, per the
// chain's duplicate-suppression rule.
func (tx *Transaction) Equal(other *Transaction) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	if tx.VoterKey != other.VoterKey ||
		tx.ContractName != other.ContractName ||
		tx.ContractMethod != other.ContractMethod ||
		tx.Timestamp != other.Timestamp ||
		tx.Signature != other.Signature ||
		len(tx.Args) != len(other.Args) {
		return false
	}
	for i := range tx.Args {
		if tx.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

// dedupeKey returns a canonical string used to detect structurally
// identical transactions in the pending pool.
func (tx *Transaction) dedupeKey() string {
	raw, err := json.Marshal(tx)
	if err != nil {
		return tx.signingString() + tx.Signature
	}
	return string(raw)
}
