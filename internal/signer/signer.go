package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the operator's signing capability.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key (with or without 0x).
func NewSigner(privateKeyHex string) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKey := key.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// TransactOpts returns a fresh transactor bound to chainID. Callers set Nonce, Value and Context.
func (s *Signer) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}

// SafeDomainSeparator computes keccak256(abi.encode(domainTypeHash, chainId, safe)).
func SafeDomainSeparator(chainID *big.Int, safe common.Address) common.Hash {
	data := make([]byte, 32*3)
	copy(data[0:32], SafeDomainTypeHash.Bytes())
	copy(data[32:64], math.U256Bytes(new(big.Int).Set(chainID)))
	copy(data[64+12:96], safe.Bytes())
	return crypto.Keccak256Hash(data)
}

// SafeTxHash calculates the EIP-712 digest keccak256(0x19 0x01 ‖ domainSeparator ‖ hashStruct(tx)).
func SafeTxHash(chainID *big.Int, safe common.Address, tx *SafeTx) common.Hash {
	domainSeparator := SafeDomainSeparator(chainID, safe)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), hashSafeTx(tx))
}

// hashSafeTx calculates hashStruct(tx). The dynamic data field is encoded as its keccak256.
func hashSafeTx(tx *SafeTx) []byte {
	// typeHash + 10 fields
	data := make([]byte, 32*11)

	copy(data[0:32], SafeTxTypeHash.Bytes())
	copy(data[32+12:64], tx.To.Bytes())
	putUint(data[64:96], tx.Value)
	copy(data[96:128], crypto.Keccak256(tx.Data))
	data[159] = tx.Operation
	putUint(data[160:192], tx.SafeTxGas)
	putUint(data[192:224], tx.BaseGas)
	putUint(data[224:256], tx.GasPrice)
	copy(data[256+12:288], tx.GasToken.Bytes())
	copy(data[288+12:320], tx.RefundReceiver.Bytes())
	putUint(data[320:352], tx.Nonce)

	return crypto.Keccak256(data)
}

func putUint(dst []byte, v *big.Int) {
	if v == nil {
		return
	}
	copy(dst, math.U256Bytes(new(big.Int).Set(v)))
}
