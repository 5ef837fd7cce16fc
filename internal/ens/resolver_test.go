package ens

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/chaintest"
)

const (
	resolverAddr = "0x4976fb03C32e5B8cfe2b6cCB31c09Ba78EBaBa41"
	vitalik      = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"
)

// ---------------------------------------------------------------------------
// Namehash: EIP-137 vectors
// ---------------------------------------------------------------------------

func TestNamehash(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "0x0000000000000000000000000000000000000000000000000000000000000000"},
		{"eth", "0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"},
		{"foo.eth", "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Namehash(tt.name).Hex())
		})
	}
}

func TestNamehashDistinguishesLabels(t *testing.T) {
	assert.NotEqual(t, Namehash("alice.eth"), Namehash("bob.eth"))
	assert.NotEqual(t, Namehash("test.eth"), Namehash("sub.test.eth"))
	assert.NotEqual(t, Namehash("Test.eth"), Namehash("test.eth"), "hashing is case-sensitive")
	assert.Equal(t, Namehash("test.eth"), Namehash(Normalize(" TEST.eth ")))
}

func TestIsName(t *testing.T) {
	for _, ok := range []string{"vitalik.eth", "sub.vitalik.eth", "VITALIK.ETH"} {
		assert.True(t, IsName(ok), ok)
	}
	for _, bad := range []string{"", ".eth", "vitalik", "vitalik.com", "a b.eth", vitalik} {
		assert.False(t, IsName(bad), bad)
	}
}

// ---------------------------------------------------------------------------
// fake caller
// ---------------------------------------------------------------------------

type fakeCaller struct {
	mu      sync.Mutex
	results map[string]string
	err     error
	calls   int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{results: make(map[string]string)}
}

func (f *fakeCaller) set(to string, selector []byte, node common.Hash, result string) {
	f.results[strings.ToLower(to)+"|"+encode(selector, node)] = result
}

func (f *fakeCaller) CallContract(_ context.Context, to, calldata string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.results[strings.ToLower(to)+"|"+calldata]; ok {
		return out, nil
	}
	return "0x", nil
}

func addressWord(addr string) string {
	return hexutil.Encode(common.LeftPadBytes(common.HexToAddress(addr).Bytes(), 32))
}

func stringWord(t *testing.T, s string) string {
	t.Helper()
	b, err := stringResult.Pack(s)
	require.NoError(t, err)
	return hexutil.Encode(b)
}

func reverseNode(addr string) common.Hash {
	return Namehash(strings.ToLower(addr[2:]) + ".addr.reverse")
}

// ---------------------------------------------------------------------------
// Resolve
// ---------------------------------------------------------------------------

func TestResolve(t *testing.T) {
	f := newFakeCaller()
	node := Namehash("vitalik.eth")
	f.set(registryAddr, selResolver, node, addressWord(resolverAddr))
	f.set(resolverAddr, selAddr, node, addressWord(vitalik))

	got, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "Vitalik.ETH")
	require.NoError(t, err)
	assert.Equal(t, vitalik, got)
}

func TestResolveNoResolver(t *testing.T) {
	f := newFakeCaller()
	f.set(registryAddr, selResolver, Namehash("nobody.eth"), addressWord("0x0000000000000000000000000000000000000000"))

	_, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "nobody.eth")
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestResolveNoAddressRecord(t *testing.T) {
	f := newFakeCaller()
	node := Namehash("empty.eth")
	f.set(registryAddr, selResolver, node, addressWord(resolverAddr))

	_, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "empty.eth")
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestResolveCallError(t *testing.T) {
	f := newFakeCaller()
	f.err = errors.New("connection refused")

	_, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "vitalik.eth")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecord)
	assert.Contains(t, err.Error(), "connection refused")
}

// ---------------------------------------------------------------------------
// Lookup / Alias
// ---------------------------------------------------------------------------

func TestLookup(t *testing.T) {
	f := newFakeCaller()
	node := reverseNode(vitalik)
	f.set(registryAddr, selResolver, node, addressWord(resolverAddr))
	f.set(resolverAddr, selName, node, stringWord(t, "vitalik.eth"))

	got, err := NewResolver(f, zerolog.Nop()).Lookup(context.Background(), strings.ToLower(vitalik))
	require.NoError(t, err)
	assert.Equal(t, "vitalik.eth", got)
}

func TestLookupEmptyName(t *testing.T) {
	f := newFakeCaller()
	node := reverseNode(vitalik)
	f.set(registryAddr, selResolver, node, addressWord(resolverAddr))
	f.set(resolverAddr, selName, node, stringWord(t, ""))

	_, err := NewResolver(f, zerolog.Nop()).Lookup(context.Background(), vitalik)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestLookupInvalidAddress(t *testing.T) {
	_, err := NewResolver(newFakeCaller(), zerolog.Nop()).Lookup(context.Background(), "0x1234")
	assert.Error(t, err)
}

func TestAliasCachesResults(t *testing.T) {
	f := newFakeCaller()
	node := reverseNode(vitalik)
	f.set(registryAddr, selResolver, node, addressWord(resolverAddr))
	f.set(resolverAddr, selName, node, stringWord(t, "vitalik.eth"))

	r := NewResolver(f, zerolog.Nop())
	assert.Equal(t, "vitalik.eth", r.Alias(context.Background(), vitalik))
	calls := f.calls
	assert.Equal(t, "vitalik.eth", r.Alias(context.Background(), strings.ToLower(vitalik)))
	assert.Equal(t, calls, f.calls, "second lookup is served from cache")

	other := "0x1111111111111111111111111111111111111111"
	assert.Empty(t, r.Alias(context.Background(), other))
	calls = f.calls
	assert.Empty(t, r.Alias(context.Background(), other))
	assert.Equal(t, calls, f.calls, "misses are cached too")
}

func TestAliasDegradesOnFailure(t *testing.T) {
	f := newFakeCaller()
	f.err = errors.New("boom")

	r := NewResolver(f, zerolog.Nop())
	assert.Empty(t, r.Alias(context.Background(), vitalik))
	assert.Empty(t, r.Alias(context.Background(), "not an address"))
}

func TestAliasCanceledContextNotCached(t *testing.T) {
	f := newFakeCaller()
	f.err = context.Canceled
	r := NewResolver(f, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, r.Alias(ctx, vitalik))

	node := reverseNode(vitalik)
	f.err = nil
	f.set(registryAddr, selResolver, node, addressWord(resolverAddr))
	f.set(resolverAddr, selName, node, stringWord(t, "vitalik.eth"))
	assert.Equal(t, "vitalik.eth", r.Alias(context.Background(), vitalik))
}

// ---------------------------------------------------------------------------
// over JSON-RPC
// ---------------------------------------------------------------------------

func TestResolveOverRPC(t *testing.T) {
	node := Namehash("vitalik.eth")
	answers := map[string]string{
		strings.ToLower(registryAddr) + "|" + encode(selResolver, node): addressWord(resolverAddr),
		strings.ToLower(resolverAddr) + "|" + encode(selAddr, node):     addressWord(vitalik),
	}

	srv := chaintest.NewServer(t)
	srv.Handle("eth_call", func(params []json.RawMessage) (interface{}, *chaintest.Error) {
		var msg struct {
			To    string `json:"to"`
			Input string `json:"input"`
			Data  string `json:"data"`
		}
		if err := json.Unmarshal(params[0], &msg); err != nil {
			return nil, &chaintest.Error{Code: -32602, Message: err.Error()}
		}
		data := msg.Input
		if data == "" {
			data = msg.Data
		}
		if out, ok := answers[strings.ToLower(msg.To)+"|"+data]; ok {
			return out, nil
		}
		return "0x", nil
	})

	c, err := chain.Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	got, err := NewResolver(c, zerolog.Nop()).Resolve(context.Background(), "vitalik.eth")
	require.NoError(t, err)
	assert.Equal(t, vitalik, got)
}
