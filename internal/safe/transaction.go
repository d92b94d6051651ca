package safe

import (
	"math/big"

	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// State is the lifecycle position of a Transaction.
type State int

const (
	Unprepared State = iota
	HashComputed
	Signed
	Submitted
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Unprepared:
		return "unprepared"
	case HashComputed:
		return "hash_computed"
	case Signed:
		return "signed"
	case Submitted:
		return "submitted"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transaction is a Safe transaction moving through Prepare, Sign and Execute.
// Refund fields are always zero: the Safe never pays gas refunds here.
type Transaction struct {
	Safe           common.Address
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      multisend.Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          *big.Int

	Digest     common.Hash
	Signature  []byte
	Submission common.Hash
	Receipt    *types.Receipt
	State      State
}

// NewTransaction builds an unprepared transaction for call with neutral fee fields.
func NewTransaction(safe common.Address, call multisend.Call) *Transaction {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	return &Transaction{
		Safe:      safe,
		To:        call.To,
		Value:     new(big.Int).Set(value),
		Data:      call.Data,
		Operation: call.Operation,
		SafeTxGas: new(big.Int),
		BaseGas:   new(big.Int),
		GasPrice:  new(big.Int),
		State:     Unprepared,
	}
}

func (t *Transaction) typed() *signer.SafeTx {
	return &signer.SafeTx{
		To:             t.To,
		Value:          t.Value,
		Data:           t.Data,
		Operation:      uint8(t.Operation),
		SafeTxGas:      t.SafeTxGas,
		BaseGas:        t.BaseGas,
		GasPrice:       t.GasPrice,
		GasToken:       t.GasToken,
		RefundReceiver: t.RefundReceiver,
		Nonce:          t.Nonce,
	}
}

// Digest computes the hash the Safe recomputes in execTransaction. It depends
// only on the chain id, the Safe address and the transaction fields.
func Digest(chainID *big.Int, t *Transaction) common.Hash {
	return signer.SafeTxHash(chainID, t.Safe, t.typed())
}

// ApprovedHashSignature encodes a pre-approved hash signature for owner:
// r = owner left-padded to 32 bytes, s = 0, v = 1. The Safe accepts it when
// the transaction sender is that owner. Only valid for threshold 1 Safes.
func ApprovedHashSignature(owner common.Address) []byte {
	sig := make([]byte, 65)
	copy(sig[12:32], owner.Bytes())
	sig[64] = 1
	return sig
}
