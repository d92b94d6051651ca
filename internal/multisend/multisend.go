// Package multisend encodes ordered call batches in the packed format consumed
// by the Safe MultiSend contract:
//
//	operation (1 byte) | to (20 bytes) | value (32 bytes) | data length (32 bytes) | data
//
// Entries are concatenated in execution order with no padding between them.
package multisend

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Operation is the Safe operation kind.
type Operation uint8

const (
	OpCall         Operation = 0
	OpDelegateCall Operation = 1
)

func (o Operation) String() string {
	switch o {
	case OpCall:
		return "call"
	case OpDelegateCall:
		return "delegatecall"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

const headerLen = 1 + common.AddressLength + 32 + 32

var (
	ErrTruncated        = errors.New("multisend: truncated payload")
	ErrInvalidOperation = errors.New("multisend: invalid operation")
)

// Call is one entry of a batch.
type Call struct {
	Operation Operation
	To        common.Address
	Value     *big.Int
	Data      []byte
}

// Encode packs calls in order. An empty batch yields an empty payload.
func Encode(calls []Call) []byte {
	size := 0
	for _, c := range calls {
		size += headerLen + len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range calls {
		out = append(out, byte(c.Operation))
		out = append(out, c.To.Bytes()...)
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		out = append(out, math.U256Bytes(new(big.Int).Set(value))...)
		out = append(out, math.U256Bytes(big.NewInt(int64(len(c.Data))))...)
		out = append(out, c.Data...)
	}
	return out
}

// Decode is the inverse of Encode.
func Decode(payload []byte) ([]Call, error) {
	var calls []Call
	for offset := 0; offset < len(payload); {
		if len(payload)-offset < headerLen {
			return nil, fmt.Errorf("%w: header at offset %d", ErrTruncated, offset)
		}
		op := Operation(payload[offset])
		if op != OpCall && op != OpDelegateCall {
			return nil, fmt.Errorf("%w: %d at offset %d", ErrInvalidOperation, op, offset)
		}
		offset++
		to := common.BytesToAddress(payload[offset : offset+common.AddressLength])
		offset += common.AddressLength
		value := new(big.Int).SetBytes(payload[offset : offset+32])
		offset += 32
		length := new(big.Int).SetBytes(payload[offset : offset+32])
		offset += 32
		if !length.IsInt64() || length.Int64() > int64(len(payload)-offset) {
			return nil, fmt.Errorf("%w: data of call %d", ErrTruncated, len(calls))
		}
		n := int(length.Int64())
		data := make([]byte, n)
		copy(data, payload[offset:offset+n])
		offset += n
		calls = append(calls, Call{Operation: op, To: to, Value: value, Data: data})
	}
	return calls, nil
}

// Pack returns multiSend(bytes) calldata for calls.
func Pack(calls []Call) ([]byte, error) {
	return contracts.MultiSend.Pack("multiSend", Encode(calls))
}

// Unpack extracts the calls from multiSend(bytes) calldata.
func Unpack(calldata []byte) ([]Call, error) {
	method := contracts.MultiSend.Methods["multiSend"]
	if len(calldata) < 4 || string(calldata[:4]) != string(method.ID) {
		return nil, errors.New("multisend: calldata is not a multiSend call")
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("multisend: unpack calldata: %w", err)
	}
	return Decode(args[0].([]byte))
}

// Wrap turns a batch into the single delegate call a Safe executes against the MultiSend contract.
func Wrap(multiSendAddr common.Address, calls []Call) (Call, error) {
	data, err := Pack(calls)
	if err != nil {
		return Call{}, err
	}
	return Call{Operation: OpDelegateCall, To: multiSendAddr, Value: new(big.Int), Data: data}, nil
}
