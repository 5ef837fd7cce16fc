package contract_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func word(v int64) string {
	return common.BigToHash(big.NewInt(v)).Hex()[2:]
}

func addrWord(a common.Address) string {
	return common.BytesToHash(a.Bytes()).Hex()[2:]
}

func mustABI(t *testing.T, s string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(s))
	require.NoError(t, err)
	return parsed
}

// ---------------------------------------------------------------------------
// DecodeCall
// ---------------------------------------------------------------------------

func TestDecodeCallTransfer(t *testing.T) {
	d := contract.NewDecoder()
	for _, in := range []string{"", "0x"} {
		c := d.DecodeCall(bob.Hex(), in)
		assert.Equal(t, contract.KindTransfer, c.Kind)
		assert.Equal(t, "Transfer", c.String())
	}
}

func TestDecodeCallERC20(t *testing.T) {
	d := contract.NewDecoder()
	input := "0xa9059cbb" + addrWord(bob) + word(1000)

	c := d.DecodeCall(token.Hex(), input)
	require.NoError(t, c.Err)
	assert.Equal(t, contract.KindMethod, c.Kind)
	assert.Equal(t, "0xa9059cbb", c.Selector)
	assert.Equal(t, "transfer", c.Name)
	assert.Equal(t, "transfer(address,uint256)", c.Signature)
	require.Len(t, c.Args, 2)
	assert.Equal(t, contract.Arg{Name: "to", Type: "address", Value: bob.Hex()}, c.Args[0])
	assert.Equal(t, contract.Arg{Name: "amount", Type: "uint256", Value: "1000"}, c.Args[1])
	assert.Equal(t, "transfer(to: "+bob.Hex()+", amount: 1000)", c.String())
}

func TestDecodeCallKnownNameOnly(t *testing.T) {
	d := contract.NewDecoder()
	c := d.DecodeCall("", "0x7ff36ab5"+word(1))
	assert.Equal(t, contract.KindKnown, c.Kind)
	assert.Equal(t, "swapExactETHForTokens", c.Name)
	assert.Empty(t, c.Args)
}

func TestDecodeCallUnknown(t *testing.T) {
	d := contract.NewDecoder()
	c := d.DecodeCall(bob.Hex(), "0xdeadbeef"+word(1))
	assert.Equal(t, contract.KindUnknown, c.Kind)
	assert.Equal(t, "0xdeadbeef", c.Selector)
	assert.Equal(t, "0xdeadbeef", c.String())
}

func TestDecodeCallShortAndInvalid(t *testing.T) {
	d := contract.NewDecoder()

	c := d.DecodeCall("", "0x1234")
	assert.Equal(t, contract.KindUnknown, c.Kind)
	assert.NoError(t, c.Err)

	c = d.DecodeCall("", "0x12345")
	assert.Equal(t, contract.KindUnknown, c.Kind)
	assert.Error(t, c.Err)
}

func TestDecodeCallTruncatedArguments(t *testing.T) {
	d := contract.NewDecoder()
	c := d.DecodeCall(token.Hex(), "0xa9059cbb"+addrWord(bob))
	assert.Equal(t, contract.KindKnown, c.Kind)
	assert.Equal(t, "transfer", c.Name)
	assert.Error(t, c.Err)
}

func TestDecodeCallStoredABI(t *testing.T) {
	d := contract.NewDecoder()
	input := "0x" + contract.Selector("setGreeting(string)")[2:] +
		word(32) + word(5) + "68656c6c6f000000000000000000000000000000000000000000000000000000"

	assert.Equal(t, contract.KindUnknown, d.DecodeCall(token.Hex(), input).Kind)

	d.AddContract(token, mustABI(t, greeterABI))
	c := d.DecodeCall(token.Hex(), input)
	require.NoError(t, c.Err)
	assert.Equal(t, contract.KindMethod, c.Kind)
	assert.Equal(t, "setGreeting", c.Name)
	assert.Equal(t, "hello", c.Args[0].Value)

	other := d.DecodeCall(bob.Hex(), input)
	assert.Equal(t, contract.KindMethod, other.Kind, "stored ABIs fill the global table")
}

func TestDecodeCallOverloadUsesRawName(t *testing.T) {
	d := contract.NewDecoder()
	input := contract.Selector("safeTransferFrom(address,address,uint256,bytes)") +
		addrWord(alice) + addrWord(bob) + word(7) + word(128) + word(0)
	c := d.DecodeCall("", input)
	require.NoError(t, c.Err)
	assert.Equal(t, "safeTransferFrom", c.Name)
	require.Len(t, c.Args, 4)
	assert.Equal(t, "0x", c.Args[3].Value)
}

// ---------------------------------------------------------------------------
// DecodeLog
// ---------------------------------------------------------------------------

var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

func TestDecodeLogERC20Transfer(t *testing.T) {
	d := contract.NewDecoder()
	l := &types.Log{
		Address: token,
		Topics:  []common.Hash{transferTopic, common.BytesToHash(alice.Bytes()), common.BytesToHash(bob.Bytes())},
		Data:    common.FromHex(word(500)),
	}

	ev := d.DecodeLog(l)
	require.NoError(t, ev.Err)
	assert.Equal(t, contract.KindMethod, ev.Kind)
	assert.Equal(t, "Transfer", ev.Name)
	require.Len(t, ev.Args, 3)
	assert.Equal(t, contract.Arg{Name: "from", Type: "address", Value: alice.Hex(), Indexed: true}, ev.Args[0])
	assert.Equal(t, contract.Arg{Name: "to", Type: "address", Value: bob.Hex(), Indexed: true}, ev.Args[1])
	assert.Equal(t, contract.Arg{Name: "value", Type: "uint256", Value: "500"}, ev.Args[2])
}

func TestDecodeLogERC721Transfer(t *testing.T) {
	d := contract.NewDecoder()
	l := &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(alice.Bytes()),
			common.BytesToHash(bob.Bytes()),
			common.BigToHash(big.NewInt(42)),
		},
	}

	ev := d.DecodeLog(l)
	require.NoError(t, ev.Err)
	assert.Equal(t, contract.KindMethod, ev.Kind)
	require.Len(t, ev.Args, 3)
	assert.Equal(t, "tokenId", ev.Args[2].Name)
	assert.Equal(t, "42", ev.Args[2].Value)
	assert.True(t, ev.Args[2].Indexed)
}

func TestDecodeLogKnownNameOnly(t *testing.T) {
	d := contract.NewDecoder()
	l := &types.Log{
		Address: token,
		Topics:  []common.Hash{contract.EventTopic("OwnershipTransferred(address,address)"), {}, {}},
	}
	ev := d.DecodeLog(l)
	assert.Equal(t, contract.KindKnown, ev.Kind)
	assert.Equal(t, "OwnershipTransferred", ev.Name)
}

func TestDecodeLogUnknown(t *testing.T) {
	d := contract.NewDecoder()

	ev := d.DecodeLog(&types.Log{Address: token, Topics: []common.Hash{common.HexToHash("0x01")}})
	assert.Equal(t, contract.KindUnknown, ev.Kind)
	assert.Equal(t, "Unknown", ev.String())

	anon := d.DecodeLog(&types.Log{Address: token})
	assert.Equal(t, contract.KindUnknown, anon.Kind)
}

func TestDecodeLogMismatchedLayout(t *testing.T) {
	d := contract.NewDecoder()
	// Transfer with a single indexed topic matches neither ERC-20 nor ERC-721.
	l := &types.Log{Address: token, Topics: []common.Hash{transferTopic, common.BytesToHash(alice.Bytes())}}
	ev := d.DecodeLog(l)
	assert.Equal(t, contract.KindKnown, ev.Kind)
	assert.Equal(t, "Transfer", ev.Name)
	assert.Error(t, ev.Err)
}

func TestDecodeLogIndexedString(t *testing.T) {
	d := contract.NewDecoder()
	d.AddContract(token, mustABI(t, `[{"type":"event","name":"Named","inputs":[{"name":"label","type":"string","indexed":true},{"name":"","type":"uint256","indexed":false}]}]`))

	hashed := common.HexToHash("0xabababababababababababababababababababababababababababababababab")
	ev := d.DecodeLog(&types.Log{
		Address: token,
		Topics:  []common.Hash{contract.EventTopic("Named(string,uint256)"), hashed},
		Data:    common.FromHex(word(9)),
	})
	require.NoError(t, ev.Err)
	assert.Equal(t, hashed.Hex(), ev.Args[0].Value, "dynamic indexed values are only available as their hash")
	assert.Equal(t, "arg1", ev.Args[1].Name)
	assert.Equal(t, "9", ev.Args[1].Value)
}

func TestDecodeLogContractABITakesPrecedence(t *testing.T) {
	d := contract.NewDecoder()
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	d.AddContract(weth, mustABI(t, `[{"type":"event","name":"Transfer","inputs":[{"name":"src","type":"address","indexed":true},{"name":"dst","type":"address","indexed":true},{"name":"wad","type":"uint256","indexed":false}]}]`))

	topics := []common.Hash{transferTopic, common.BytesToHash(alice.Bytes()), common.BytesToHash(bob.Bytes())}
	data := common.FromHex(word(1))

	fromWeth := d.DecodeLog(&types.Log{Address: weth, Topics: topics, Data: data})
	assert.Equal(t, "src", fromWeth.Args[0].Name)

	fromOther := d.DecodeLog(&types.Log{Address: token, Topics: topics, Data: data})
	assert.Equal(t, "from", fromOther.Args[0].Name, "contract ABIs do not replace global entries")
}

func TestLoadStore(t *testing.T) {
	s := newStore(t)
	_, err := s.Add(token.Hex(), "greeter", []byte(greeterABI))
	require.NoError(t, err)

	d := contract.NewDecoder()
	require.NoError(t, d.LoadStore(s))

	c := d.DecodeCall(token.Hex(), contract.Selector("greet()"))
	assert.Equal(t, contract.KindMethod, c.Kind)
	assert.Equal(t, "greet", c.Name)
}

// ---------------------------------------------------------------------------
// FormatValue
// ---------------------------------------------------------------------------

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"address", alice, alice.Hex()},
		{"big int", big.NewInt(-5), "-5"},
		{"bytes", []byte{0xca, 0xfe}, "0xcafe"},
		{"bytes32", [32]byte{0: 1}, "0x01" + strings.Repeat("00", 31)},
		{"bool", true, "true"},
		{"uint8", uint8(18), "18"},
		{"string", "hi", "hi"},
		{"address list", []common.Address{alice, bob}, "[" + alice.Hex() + ", " + bob.Hex() + "]"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contract.FormatValue(tt.in))
		})
	}
}
