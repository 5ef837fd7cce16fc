// Package ens resolves ENS names and reverse records over eth_call.
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
)

// ENS registry address, the same on mainnet and the public testnets.
const registryAddr = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

var (
	selResolver = common.FromHex("0x0178b8bf") // resolver(bytes32)
	selAddr     = common.FromHex("0x3b3b57de") // addr(bytes32)
	selName     = common.FromHex("0x691f3431") // name(bytes32)
)

// ErrNoRecord is returned when a name or address has no ENS record.
var ErrNoRecord = errors.New("no ENS record")

var stringResult = abi.Arguments{{Type: mustType("string")}}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Caller executes a read-only contract call and returns the hex result.
type Caller interface {
	CallContract(ctx context.Context, to, calldata string) (string, error)
}

// Resolver resolves names and caches reverse lookups. It is safe for
// concurrent use.
type Resolver struct {
	c   Caller
	log zerolog.Logger

	mu      sync.Mutex
	aliases map[common.Address]string
}

// NewResolver returns a resolver that queries the registry through c.
func NewResolver(c Caller, log zerolog.Logger) *Resolver {
	return &Resolver{c: c, log: log, aliases: make(map[common.Address]string)}
}

// IsName reports whether s looks like an ENS name.
func IsName(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > len(".eth") && strings.HasSuffix(strings.ToLower(s), ".eth") && !strings.Contains(s, " ")
}

// Resolve returns the address name points to.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = Normalize(name)
	node := Namehash(name)

	resolver, err := r.resolverFor(ctx, node)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", name, err)
	}

	out, err := r.c.CallContract(ctx, resolver.Hex(), encode(selAddr, node))
	if err != nil {
		return "", fmt.Errorf("querying resolver for %s: %w", name, err)
	}
	addr, ok := parseAddress(out)
	if !ok {
		return "", fmt.Errorf("resolving %s: %w", name, ErrNoRecord)
	}
	return addr.Hex(), nil
}

// Lookup returns the primary name recorded for address.
func (r *Resolver) Lookup(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	node := Namehash(strings.ToLower(common.HexToAddress(address).Hex()[2:]) + ".addr.reverse")

	resolver, err := r.resolverFor(ctx, node)
	if err != nil {
		return "", fmt.Errorf("reverse lookup %s: %w", address, err)
	}

	out, err := r.c.CallContract(ctx, resolver.Hex(), encode(selName, node))
	if err != nil {
		return "", fmt.Errorf("querying reverse resolver for %s: %w", address, err)
	}
	name, err := decodeString(out)
	if err != nil {
		return "", fmt.Errorf("decoding reverse name for %s: %w", address, err)
	}
	if name == "" {
		return "", fmt.Errorf("reverse lookup %s: %w", address, ErrNoRecord)
	}
	return name, nil
}

// Alias returns the ENS name of address or "" when there is none or the
// lookup fails. Results, including misses, are cached for the resolver's
// lifetime; failures caused by ctx are not.
func (r *Resolver) Alias(ctx context.Context, address string) string {
	if !common.IsHexAddress(address) {
		return ""
	}
	key := common.HexToAddress(address)

	r.mu.Lock()
	name, ok := r.aliases[key]
	r.mu.Unlock()
	if ok {
		return name
	}

	name, err := r.Lookup(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		if !errors.Is(err, ErrNoRecord) {
			r.log.Debug().Err(err).Str("address", address).Msg("alias lookup failed")
		}
		name = ""
	}

	r.mu.Lock()
	r.aliases[key] = name
	r.mu.Unlock()
	return name
}

func (r *Resolver) resolverFor(ctx context.Context, node common.Hash) (common.Address, error) {
	out, err := r.c.CallContract(ctx, registryAddr, encode(selResolver, node))
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS registry: %w", err)
	}
	addr, ok := parseAddress(out)
	if !ok {
		return common.Address{}, ErrNoRecord
	}
	return addr, nil
}

// Normalize lowercases and trims name. Full UTS-46 normalisation is not applied.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Namehash implements the EIP-137 namehash algorithm.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := keccak256([]byte(labels[i]))
		copy(node[:], keccak256(node[:], label))
	}
	return node
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

func encode(selector []byte, node common.Hash) string {
	return hexutil.Encode(append(append([]byte{}, selector...), node[:]...))
}

// parseAddress reads an address from a 32-byte ABI word. The zero address
// counts as absent.
func parseAddress(out string) (common.Address, bool) {
	b, err := hexutil.Decode(out)
	if err != nil || len(b) < 32 {
		return common.Address{}, false
	}
	addr := common.BytesToAddress(b[12:32])
	return addr, addr != (common.Address{})
}

func decodeString(out string) (string, error) {
	b, err := hexutil.Decode(out)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	values, err := stringResult.Unpack(b)
	if err != nil {
		return "", err
	}
	return values[0].(string), nil
}
