// Package contracts holds the call signatures of the externally deployed
// contracts the onboarding flow talks to: Safe v1.3.0, its proxy factory and
// MultiSend, the Zodiac module factory, Roles v2, the fee router factory and ERC-20.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const safeABIJSON = `[
{"inputs":[],"name":"nonce","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getOwners","outputs":[{"name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getThreshold","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"module","type":"address"}],"name":"isModuleEnabled","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"module","type":"address"}],"name":"enableModule","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"_owners","type":"address[]"},{"name":"_threshold","type":"uint256"},{"name":"to","type":"address"},{"name":"data","type":"bytes"},{"name":"fallbackHandler","type":"address"},{"name":"paymentToken","type":"address"},{"name":"payment","type":"uint256"},{"name":"paymentReceiver","type":"address"}],"name":"setup","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"_nonce","type":"uint256"}],"name":"getTransactionHash","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"signatures","type":"bytes"}],"name":"execTransaction","outputs":[{"name":"success","type":"bool"}],"stateMutability":"payable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":false,"name":"txHash","type":"bytes32"},{"indexed":false,"name":"payment","type":"uint256"}],"name":"ExecutionSuccess","type":"event"},
{"anonymous":false,"inputs":[{"indexed":false,"name":"txHash","type":"bytes32"},{"indexed":false,"name":"payment","type":"uint256"}],"name":"ExecutionFailure","type":"event"}
]`

const safeProxyFactoryABIJSON = `[
{"inputs":[{"name":"_singleton","type":"address"},{"name":"initializer","type":"bytes"},{"name":"saltNonce","type":"uint256"}],"name":"createProxyWithNonce","outputs":[{"name":"proxy","type":"address"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":false,"name":"proxy","type":"address"},{"indexed":false,"name":"singleton","type":"address"}],"name":"ProxyCreation","type":"event"}
]`

const multiSendABIJSON = `[
{"inputs":[{"name":"transactions","type":"bytes"}],"name":"multiSend","outputs":[],"stateMutability":"payable","type":"function"}
]`

const moduleProxyFactoryABIJSON = `[
{"inputs":[{"name":"masterCopy","type":"address"},{"name":"initializer","type":"bytes"},{"name":"saltNonce","type":"uint256"}],"name":"deployModule","outputs":[{"name":"proxy","type":"address"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"proxy","type":"address"},{"indexed":true,"name":"masterCopy","type":"address"}],"name":"ModuleProxyCreation","type":"event"}
]`

const rolesABIJSON = `[
{"inputs":[{"name":"initParams","type":"bytes"}],"name":"setUp","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"module","type":"address"},{"name":"roleKeys","type":"bytes32[]"},{"name":"memberOf","type":"bool[]"}],"name":"assignRoles","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"module","type":"address"},{"name":"roleKey","type":"bytes32"}],"name":"setDefaultRole","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"roleKey","type":"bytes32"},{"name":"targetAddress","type":"address"}],"name":"scopeTarget","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"roleKey","type":"bytes32"},{"name":"targetAddress","type":"address"},{"name":"options","type":"uint8"}],"name":"allowTarget","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"roleKey","type":"bytes32"},{"name":"targetAddress","type":"address"},{"name":"selector","type":"bytes4"},{"name":"options","type":"uint8"}],"name":"allowFunction","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const feeRouterFactoryABIJSON = `[
{"inputs":[{"name":"client","type":"address"},{"name":"depositFeeBps","type":"uint256"},{"name":"profitFeeBps","type":"uint256"}],"name":"predictProxyAddress","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"client","type":"address"},{"name":"amount","type":"uint256"},{"name":"depositFeeBps","type":"uint256"},{"name":"profitFeeBps","type":"uint256"}],"name":"deposit","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const feeRouterProxyABIJSON = `[
{"inputs":[{"name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const erc20ABIJSON = `[
{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	Safe               = mustParse("Safe", safeABIJSON)
	SafeProxyFactory   = mustParse("SafeProxyFactory", safeProxyFactoryABIJSON)
	MultiSend          = mustParse("MultiSend", multiSendABIJSON)
	ModuleProxyFactory = mustParse("ModuleProxyFactory", moduleProxyFactoryABIJSON)
	Roles              = mustParse("Roles", rolesABIJSON)
	FeeRouterFactory   = mustParse("FeeRouterFactory", feeRouterFactoryABIJSON)
	FeeRouterProxy     = mustParse("FeeRouterProxy", feeRouterProxyABIJSON)
	ERC20              = mustParse("ERC20", erc20ABIJSON)
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid %s abi: %v", name, err))
	}
	return parsed
}

// Selector returns the 4-byte function selector of method in parsed.
func Selector(parsed abi.ABI, method string) ([4]byte, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return [4]byte{}, fmt.Errorf("method %q not found in abi", method)
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	return sel, nil
}
