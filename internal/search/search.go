// Package search classifies free-form explorer queries.
package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Mohsinsiddi/w3scan/internal/ens"
)

// ErrUnrecognized is returned for a query that is not an address, block
// number, transaction hash or ENS name.
var ErrUnrecognized = errors.New("unrecognized search query")

// Kind is what a query refers to.
type Kind int

const (
	KindEmpty Kind = iota
	KindAddress
	KindBlock
	KindTx
	KindName
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindAddress:
		return "address"
	case KindBlock:
		return "block"
	case KindTx:
		return "tx"
	case KindName:
		return "ens"
	default:
		return "unknown"
	}
}

// Query is a classified search term. Only the field matching Kind is set.
type Query struct {
	Kind    Kind
	Raw     string
	Address string // checksummed
	Block   uint64
	Hash    string // lower-case, 0x-prefixed
	Name    string // normalised ENS name
}

// Classify inspects q. Addresses are checked before block numbers, then
// transaction hashes, then ENS names. A mixed-case address must carry a
// valid EIP-55 checksum. An empty query is not an error.
func Classify(q string) (Query, error) {
	raw := strings.TrimSpace(q)
	out := Query{Kind: KindUnknown, Raw: raw}

	switch {
	case raw == "":
		out.Kind = KindEmpty
		return out, nil

	case isHex(raw, common.AddressLength):
		addr := common.HexToAddress(raw)
		if mixedCase(raw[2:]) && addr.Hex() != raw {
			return out, fmt.Errorf("%w: bad address checksum %s", ErrUnrecognized, raw)
		}
		out.Kind, out.Address = KindAddress, addr.Hex()
		return out, nil

	case isDigits(raw):
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return out, fmt.Errorf("%w: block number %s out of range", ErrUnrecognized, raw)
		}
		out.Kind, out.Block = KindBlock, n
		return out, nil

	case isHex(raw, common.HashLength):
		out.Kind, out.Hash = KindTx, strings.ToLower(raw)
		return out, nil

	case ens.IsName(raw):
		out.Kind, out.Name = KindName, ens.Normalize(raw)
		return out, nil
	}
	return out, fmt.Errorf("%w: %q", ErrUnrecognized, raw)
}

// isHex reports whether s is 0x followed by exactly n bytes of hex.
func isHex(s string, n int) bool {
	if len(s) != 2+2*n || !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	_, err := hexutil.Decode("0x" + s[2:])
	return err == nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func mixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
