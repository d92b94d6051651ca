package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWellKnownSelectors(t *testing.T) {
	cases := map[string]struct {
		sel  func() ([4]byte, error)
		want string
	}{
		"multiSend":       {func() ([4]byte, error) { return Selector(MultiSend, "multiSend") }, "0x8d80ff0a"},
		"nonce":           {func() ([4]byte, error) { return Selector(Safe, "nonce") }, "0xaffed0e0"},
		"enableModule":    {func() ([4]byte, error) { return Selector(Safe, "enableModule") }, "0x610b5925"},
		"transfer":        {func() ([4]byte, error) { return Selector(ERC20, "transfer") }, "0xa9059cbb"},
		"execTransaction": {func() ([4]byte, error) { return Selector(Safe, "execTransaction") }, "0x6a761202"},
	}
	for name, tc := range cases {
		got, err := tc.sel()
		require.NoError(t, err, name)
		assert.Equal(t, tc.want, hexutil.Encode(got[:]), name)
	}
}

func TestSelectorMatchesSignatureHash(t *testing.T) {
	sel, err := Selector(Roles, "allowFunction")
	require.NoError(t, err)
	want := crypto.Keccak256([]byte("allowFunction(bytes32,address,bytes4,uint8)"))[:4]
	assert.Equal(t, want, sel[:])

	_, err = Selector(Roles, "missing")
	assert.Error(t, err)
}
