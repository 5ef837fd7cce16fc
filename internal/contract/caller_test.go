package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSignature(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"transfer(address,uint256)", "transfer(address,uint256)"},
		{"transfer(address to, uint256 amount)", "transfer(address,uint256)"},
		{"function approve(address spender, uint256 value)", "approve(address,uint256)"},
		{"event Transfer(address indexed from, address indexed to, uint256 value)", "Transfer(address,address,uint256)"},
		{"totalSupply()", "totalSupply()"},
		{"  name ( ) ", "name()"},
		{"swap((address a, uint256 b) order, bytes data)", "swap((address,uint256),bytes)"},
		{"noparens", "noparens"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSignature(tt.in))
		})
	}
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "0xa9059cbb", Selector("transfer(address,uint256)"))
	assert.Equal(t, "0xa9059cbb", Selector("function transfer(address to, uint256 amount)"))
	assert.Equal(t, "0x70a08231", Selector("balanceOf(address)"))
	assert.Equal(t, "0x06fdde03", Selector("name()"))
}

func TestEventTopic(t *testing.T) {
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		EventTopic("Transfer(address,address,uint256)").Hex())
	assert.Equal(t,
		"0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925",
		EventTopic("event Approval(address indexed owner, address indexed spender, uint256 value)").Hex())
}
