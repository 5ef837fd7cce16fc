// Package chaintest provides an in-process fake EVM JSON-RPC node for tests.
package chaintest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler answers one JSON-RPC call. A non-nil *Error is sent as the
// response's error member.
type Handler func(params []json.RawMessage) (interface{}, *Error)

// Server is a fake JSON-RPC node. Unknown methods answer -32601.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	blocks   map[uint64]map[string]interface{}
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// NewServer starts a fake node that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
		blocks:   make(map[uint64]map[string]interface{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	s.Handle("eth_getBlockByNumber", s.blockByNumber)
	t.Cleanup(s.Close)
	return s
}

// Handle registers h for method, replacing any earlier handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Result makes method always answer v.
func (s *Server) Result(method string, v interface{}) {
	s.Handle(method, func([]json.RawMessage) (interface{}, *Error) { return v, nil })
}

// Fail makes method always answer with a JSON-RPC error.
func (s *Server) Fail(method string, code int, msg string) {
	s.Handle(method, func([]json.RawMessage) (interface{}, *Error) {
		return nil, &Error{Code: code, Message: msg}
	})
}

// Calls returns how many times method was invoked.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// AddBlock serves b from eth_getBlockByNumber at its height. The highest
// added block also answers "latest" and eth_blockNumber.
func (s *Server) AddBlock(b map[string]interface{}) {
	n, err := hexutil.DecodeUint64(b["number"].(string))
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[n] = b
	if _, ok := s.handlers["eth_blockNumber"]; !ok {
		s.handlers["eth_blockNumber"] = s.head
	}
}

func (s *Server) head([]json.RawMessage) (interface{}, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hexutil.EncodeUint64(s.latestLocked()), nil
}

func (s *Server) latestLocked() uint64 {
	var top uint64
	for n := range s.blocks {
		if n > top {
			top = n
		}
	}
	return top
}

func (s *Server) blockByNumber(params []json.RawMessage) (interface{}, *Error) {
	if len(params) == 0 {
		return nil, &Error{Code: -32602, Message: "missing block tag"}
	}
	var tag string
	if err := json.Unmarshal(params[0], &tag); err != nil {
		return nil, &Error{Code: -32602, Message: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint64
	if tag == "latest" {
		n = s.latestLocked()
	} else {
		v, err := hexutil.DecodeUint64(tag)
		if err != nil {
			return nil, &Error{Code: -32602, Message: err.Error()}
		}
		n = v
	}
	b, ok := s.blocks[n]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &Error{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// Block builds a block object at height n with timestamp ts holding txs in order.
func Block(n, ts uint64, txs ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, 0, len(txs))
	for i, tx := range txs {
		tx["blockNumber"] = hexutil.EncodeUint64(n)
		tx["transactionIndex"] = hexutil.EncodeUint64(uint64(i))
		list = append(list, tx)
	}
	return map[string]interface{}{
		"number":        hexutil.EncodeUint64(n),
		"hash":          Hash("block", n),
		"parentHash":    Hash("block", n-1),
		"timestamp":     hexutil.EncodeUint64(ts),
		"miner":         "0x0000000000000000000000000000000000000000",
		"gasUsed":       "0x5208",
		"gasLimit":      "0x1c9c380",
		"baseFeePerGas": "0x3b9aca00",
		"transactions":  list,
	}
}

// Tx builds a plain transfer object with the given hash.
func Tx(hash, from, to string) map[string]interface{} {
	return map[string]interface{}{
		"hash":     hash,
		"from":     from,
		"to":       to,
		"value":    "0xde0b6b3a7640000",
		"gas":      "0x5208",
		"gasPrice": "0x3b9aca00",
		"nonce":    "0x0",
		"input":    "0x",
	}
}

// Hash derives a deterministic 32-byte hex hash from a label and number.
func Hash(label string, n uint64) string {
	s := label + strconv.FormatUint(n, 10)
	h := make([]byte, 0, 64)
	for i := 0; len(h) < 64; i++ {
		h = append(h, "0123456789abcdef"[(int(s[i%len(s)])+i)%16])
	}
	return "0x" + strings.ToLower(string(h))
}
