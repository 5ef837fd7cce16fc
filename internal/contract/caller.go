package contract

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// NormalizeSignature reduces a human-written signature to its canonical
// form: "function transfer(address to, uint256 amount)" becomes
// "transfer(address,uint256)". Parameter names and the leading "function" or
// "event" keyword are dropped, as are spaces and "indexed" markers.
func NormalizeSignature(sig string) string {
	sig = strings.TrimSpace(sig)
	for _, kw := range []string{"function ", "event ", "error "} {
		sig = strings.TrimPrefix(sig, kw)
	}
	sig = strings.TrimSpace(sig)

	open := strings.Index(sig, "(")
	end := strings.LastIndex(sig, ")")
	if open < 0 || end < open {
		return sig
	}

	name := strings.TrimSpace(sig[:open])
	paramStr := strings.TrimSpace(sig[open+1 : end])
	if paramStr == "" {
		return name + "()"
	}

	var types []string
	for _, p := range splitParams(paramStr) {
		parts := strings.Fields(p)
		if len(parts) == 0 {
			continue
		}
		// Tuples may carry their own parameter names.
		if strings.HasPrefix(parts[0], "(") {
			types = append(types, NormalizeSignature(strings.Join(parts, " ")))
			continue
		}
		types = append(types, parts[0])
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// splitParams splits on top-level commas only.
func splitParams(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// Selector returns the 4-byte function selector of sig as 0x-prefixed hex.
func Selector(sig string) string {
	return "0x" + hex.EncodeToString(keccak([]byte(NormalizeSignature(sig)))[:4])
}

// EventTopic returns the topic0 hash of an event signature.
func EventTopic(sig string) common.Hash {
	return common.BytesToHash(keccak([]byte(NormalizeSignature(sig))))
}

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
