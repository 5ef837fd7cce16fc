package feed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/feed"
)

func entry(from, to string) feed.Entry {
	return feed.Entry{Tx: &chain.Transaction{From: from, To: to}}
}

func TestLatestAddresses(t *testing.T) {
	entries := []feed.Entry{
		entry("0xA", "0xB"),
		entry("0xb", "0xC"),
		entry("0xD", ""), // contract creation
		{},
	}
	assert.Equal(t, []string{"0xB", "0xA", "0xC", "0xD"}, feed.LatestAddresses(entries))
}

func TestLatestAddressesEmpty(t *testing.T) {
	assert.Empty(t, feed.LatestAddresses(nil))
}

func TestLatestHeights(t *testing.T) {
	assert.Equal(t, []uint64{10, 9, 8}, feed.LatestHeights(10, 3))
	assert.Equal(t, []uint64{1, 0}, feed.LatestHeights(1, 5))
	assert.Equal(t, []uint64{0}, feed.LatestHeights(0, 10))
	assert.Nil(t, feed.LatestHeights(10, 0))
}
