package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const defaultCallTimeout = 15 * time.Second

var (
	// ErrBlockNotFound is returned when the node has no block at the requested height.
	ErrBlockNotFound = errors.New("block not found")
	// ErrTxNotFound is returned when the node does not know a transaction hash.
	ErrTxNotFound = errors.New("transaction not found")
)

// Observer receives the outcome of every JSON-RPC call made by a Client.
type Observer interface {
	ObserveRPC(method string, took time.Duration, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithObserver reports every RPC call to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithCallTimeout bounds each individual RPC call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client is a JSON-RPC client for EVM chains. It speaks http(s) and ws(s).
type Client struct {
	url      string
	rpc      *rpc.Client
	timeout  time.Duration
	observer Observer
}

// Transaction holds a simplified transaction record.
type Transaction struct {
	Hash         string
	From         string
	To           string
	Value        *big.Int
	ValueETH     string
	Gas          uint64
	GasPrice     *big.Int
	Nonce        uint64
	BlockNum     uint64
	Index        uint64
	Pending      bool // not yet mined; BlockNum and Index are meaningless
	Timestamp    uint64
	Input        string
	Success      bool   // only set when a receipt was available
	FunctionName string // "Transfer" for plain sends, otherwise the 4-byte selector
	IsContract   bool   // true when input data is present (contract call)
}

// Block is a block with its full transaction list.
type Block struct {
	Number       uint64
	Hash         string
	ParentHash   string
	Timestamp    uint64
	Miner        string
	GasUsed      uint64
	GasLimit     uint64
	BaseFee      *big.Int // nil on pre-EIP-1559 chains
	Transactions []*Transaction
}

// TxReceipt holds the on-chain receipt of a mined transaction.
type TxReceipt struct {
	Hash              string
	Status            uint64 // 1 = success, 0 = reverted
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	From              string
	To                string
	ContractAddress   string // non-empty when a contract was deployed
	Logs              []*types.Log
}

// Dial connects to url. For http(s) endpoints no request is made until the
// first call; ws(s) endpoints are connected eagerly.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	c := &Client{
		url:     url,
		rpc:     rc,
		timeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the endpoint the client was dialed with.
func (c *Client) URL() string { return c.url }

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Close() }

// ChainID returns the chain's ID.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// BlockByNumber returns the block at height with full transaction objects.
func (c *Client) BlockByNumber(ctx context.Context, height uint64) (*Block, error) {
	return c.getBlock(ctx, hexutil.EncodeUint64(height))
}

// LatestBlock returns the current head block with full transaction objects.
func (c *Client) LatestBlock(ctx context.Context) (*Block, error) {
	return c.getBlock(ctx, "latest")
}

func (c *Client) getBlock(ctx context.Context, tag string) (*Block, error) {
	var rb *rpcBlock
	if err := c.call(ctx, &rb, "eth_getBlockByNumber", tag, true); err != nil {
		return nil, err
	}
	if rb == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, tag)
	}
	return rb.toBlock(), nil
}

// TransactionByHash returns a transaction by hash.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var rt *rpcTransaction
	if err := c.call(ctx, &rt, "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, hash)
	}
	return rt.toTx(), nil
}

// TransactionReceipt fetches the receipt for hash.
// Returns nil, nil if the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*TxReceipt, error) {
	var rr *rpcReceipt
	if err := c.call(ctx, &rr, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if rr == nil {
		return nil, nil
	}
	return rr.toReceipt(), nil
}

// Balance returns the native balance of address at the latest block.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	var b hexutil.Big
	if err := c.call(ctx, &b, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	return b.ToInt(), nil
}

// Nonce returns the transaction count of address at the latest block.
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_getTransactionCount", address, "latest"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Code returns the bytecode at an address. Empty "0x" means EOA (no code).
func (c *Client) Code(ctx context.Context, address string) (string, error) {
	var code string
	if err := c.call(ctx, &code, "eth_getCode", address, "latest"); err != nil {
		return "", err
	}
	return code, nil
}

// IsContract reports whether address has deployed code.
func (c *Client) IsContract(ctx context.Context, address string) (bool, error) {
	code, err := c.Code(ctx, address)
	if err != nil {
		return false, err
	}
	return code != "" && code != "0x", nil
}

// CallContract runs a read-only eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to, calldata string) (string, error) {
	return c.SimulateCall(ctx, "", to, calldata)
}

// SimulateCall runs calldata against to at the latest block without sending a
// transaction. A non-empty from sets msg.sender.
func (c *Client) SimulateCall(ctx context.Context, from, to, calldata string) (string, error) {
	msg := map[string]string{
		"to":   to,
		"data": calldata,
	}
	if from != "" {
		msg["from"] = from
	}
	var out string
	if err := c.call(ctx, &out, "eth_call", msg, "latest"); err != nil {
		return "", err
	}
	return out, nil
}

// Ping tests the RPC endpoint and returns latency + block number.
func (c *Client) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.BlockNumber(ctx)
	return time.Since(start), blockNum, err
}

// --- internal JSON-RPC plumbing ---

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.rpc.CallContext(ctx, result, method, args...)
	if c.observer != nil {
		c.observer.ObserveRPC(method, time.Since(start), err)
	}
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return fmt.Errorf("%s: RPC error %d: %w", method, rpcErr.ErrorCode(), err)
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

type rpcTransaction struct {
	Hash             string          `json:"hash"`
	From             string          `json:"from"`
	To               string          `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	Input            string          `json:"input"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
}

func (rt *rpcTransaction) toTx() *Transaction {
	tx := &Transaction{
		Hash:         rt.Hash,
		From:         rt.From,
		To:           rt.To,
		Gas:          uint64(rt.Gas),
		Nonce:        uint64(rt.Nonce),
		Input:        rt.Input,
		FunctionName: MethodName(rt.Input),
		IsContract:   rt.Input != "" && rt.Input != "0x",
		Pending:      rt.BlockNumber == nil,
	}
	if rt.Value != nil {
		tx.Value = rt.Value.ToInt()
		tx.ValueETH = weiToETH(tx.Value)
	}
	if rt.GasPrice != nil {
		tx.GasPrice = rt.GasPrice.ToInt()
	}
	if rt.BlockNumber != nil {
		tx.BlockNum = uint64(*rt.BlockNumber)
	}
	if rt.TransactionIndex != nil {
		tx.Index = uint64(*rt.TransactionIndex)
	}
	return tx
}

type rpcBlock struct {
	Number        hexutil.Uint64    `json:"number"`
	Hash          string            `json:"hash"`
	ParentHash    string            `json:"parentHash"`
	Timestamp     hexutil.Uint64    `json:"timestamp"`
	Miner         string            `json:"miner"`
	GasUsed       hexutil.Uint64    `json:"gasUsed"`
	GasLimit      hexutil.Uint64    `json:"gasLimit"`
	BaseFeePerGas *hexutil.Big      `json:"baseFeePerGas"`
	Transactions  []*rpcTransaction `json:"transactions"`
}

func (rb *rpcBlock) toBlock() *Block {
	b := &Block{
		Number:       uint64(rb.Number),
		Hash:         rb.Hash,
		ParentHash:   rb.ParentHash,
		Timestamp:    uint64(rb.Timestamp),
		Miner:        rb.Miner,
		GasUsed:      uint64(rb.GasUsed),
		GasLimit:     uint64(rb.GasLimit),
		Transactions: make([]*Transaction, 0, len(rb.Transactions)),
	}
	if rb.BaseFeePerGas != nil {
		b.BaseFee = rb.BaseFeePerGas.ToInt()
	}
	for _, rt := range rb.Transactions {
		tx := rt.toTx()
		tx.Timestamp = b.Timestamp
		b.Transactions = append(b.Transactions, tx)
	}
	return b
}

type rpcReceipt struct {
	TransactionHash   string          `json:"transactionHash"`
	Status            *hexutil.Uint64 `json:"status"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	From              string          `json:"from"`
	To                string          `json:"to"`
	ContractAddress   string          `json:"contractAddress"`
	Logs              []*types.Log    `json:"logs"`
	Timestamp         *hexutil.Uint64 `json:"timestamp"` // Otterscan extension
}

func (rr *rpcReceipt) toReceipt() *TxReceipt {
	r := &TxReceipt{
		Hash:            rr.TransactionHash,
		BlockNumber:     uint64(rr.BlockNumber),
		GasUsed:         uint64(rr.GasUsed),
		From:            rr.From,
		To:              rr.To,
		ContractAddress: rr.ContractAddress,
		Logs:            rr.Logs,
	}
	// Pre-Byzantium receipts carry a state root instead of a status.
	if rr.Status != nil {
		r.Status = uint64(*rr.Status)
	} else {
		r.Status = 1
	}
	if rr.EffectiveGasPrice != nil {
		r.EffectiveGasPrice = rr.EffectiveGasPrice.ToInt()
	}
	return r
}
