package chain

import (
	"context"
	"fmt"
	"strings"
)

// Direction selects which side of a block an address search walks.
type Direction string

const (
	SearchBefore Direction = "before"
	SearchAfter  Direction = "after"
)

// DefaultPageSize matches the page size Otterscan's own UI requests.
const DefaultPageSize = 1000

// AddressPage is one page of an address's transaction history.
type AddressPage struct {
	Transactions []*Transaction
	FirstPage    bool
	LastPage     bool
}

type otsSearchResult struct {
	Txs       []*rpcTransaction `json:"txs"`
	Receipts  []*rpcReceipt     `json:"receipts"`
	FirstPage bool              `json:"firstPage"`
	LastPage  bool              `json:"lastPage"`
}

// ParseDirection parses "before" or "after".
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case SearchBefore:
		return SearchBefore, nil
	case SearchAfter:
		return SearchAfter, nil
	}
	return "", fmt.Errorf("unknown direction %q (want before or after)", s)
}

// SearchTransactions pages through the transactions touching address using
// the Otterscan ots_searchTransactions{Before,After} extension. Block 0 with
// SearchBefore starts from the head.
func (c *Client) SearchTransactions(ctx context.Context, address string, block uint64, dir Direction, pageSize int) (*AddressPage, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	method := "ots_searchTransactionsBefore"
	if dir == SearchAfter {
		method = "ots_searchTransactionsAfter"
	}

	var res otsSearchResult
	if err := c.call(ctx, &res, method, address, block, pageSize); err != nil {
		return nil, err
	}

	page := &AddressPage{
		Transactions: make([]*Transaction, 0, len(res.Txs)),
		FirstPage:    res.FirstPage,
		LastPage:     res.LastPage,
	}
	for i, rt := range res.Txs {
		tx := rt.toTx()
		if i < len(res.Receipts) && res.Receipts[i] != nil {
			rr := res.Receipts[i]
			tx.Success = rr.Status == nil || *rr.Status == 1
			if rr.Timestamp != nil {
				tx.Timestamp = uint64(*rr.Timestamp)
			}
		}
		page.Transactions = append(page.Transactions, tx)
	}
	return page, nil
}

// HasOtterscan reports whether the node exposes the ots_ namespace.
func (c *Client) HasOtterscan(ctx context.Context) bool {
	var level int
	return c.call(ctx, &level, "ots_getApiLevel") == nil
}
