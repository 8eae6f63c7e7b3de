package account

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
)

// hexQuantity decodes the "0x..." quantities EVM JSON-RPC returns. No
// hexutil-equivalent package is present in the retrieval pack's copy of the
// teacher (common/ was retrieved sparsely, cache.go only), so this is a
// direct strconv/math-big decode, the same stdlib-only treatment already
// justified for U256 in internal/models/u256.go.
type hexQuantity struct {
	big *big.Int
}

func (h *hexQuantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	h.big = new(big.Int)
	if s == "" || s == "0x" {
		return nil
	}
	_, ok := h.big.SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		h.big = new(big.Int)
	}
	return nil
}

func (h hexQuantity) Uint64() uint64 {
	if h.big == nil {
		return 0
	}
	return h.big.Uint64()
}

// BigInt returns the decoded value, never nil.
func (h hexQuantity) BigInt() *big.Int {
	if h.big == nil {
		return new(big.Int)
	}
	return h.big
}

func (h hexQuantity) IsZero() bool {
	return h.big == nil || h.big.Sign() == 0
}

func (h hexQuantity) String() string {
	if h.big == nil {
		return "0"
	}
	return h.big.String()
}

func hexToUint64(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseUint(s, 16, 64)
	return n
}

// Block is the eth_getBlockByNumber(height, true) response with full
// transaction objects embedded.
type Block struct {
	Number       string        `json:"number"`
	Hash         string        `json:"hash"`
	Timestamp    string        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

func (b Block) TimeUnix() uint32 {
	return uint32(hexToUint64(b.Timestamp))
}

// Transaction is one entry of Block.Transactions. BlockHash is nil/empty for
// a still-pending transaction (SPEC_FULL §4.3's "pending" filter).
type Transaction struct {
	Hash      string      `json:"hash"`
	BlockHash string      `json:"blockHash"`
	From      string      `json:"from"`
	To        *string     `json:"to"`
	Value     hexQuantity `json:"value"`
}

func (t Transaction) IsPending() bool {
	return t.BlockHash == ""
}

// Receipt is the eth_getTransactionReceipt response.
type Receipt struct {
	Logs []Log `json:"logs"`
}

// Log is one receipt log entry.
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
	Removed bool     `json:"removed"`
}

// transferEventSignature is keccak256("Transfer(address,address,uint256)"),
// the ERC-20 Transfer event topic0 (SPEC_FULL §4.3).
const transferEventSignature = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// IsERC20Transfer reports whether this log is a non-removed 3-topic ERC-20
// Transfer event.
func (l Log) IsERC20Transfer() bool {
	return !l.Removed && len(l.Topics) == 3 && strings.EqualFold(l.Topics[0], transferEventSignature)
}

// transferFromTo decodes the indexed from/to addresses out of a Transfer
// event's topics (each a 32-byte word, address right-aligned in the low 20
// bytes).
func (l Log) transferFromTo() (from, to string) {
	return topicAddress(l.Topics[1]), topicAddress(l.Topics[2])
}

func topicAddress(topic string) string {
	s := strings.TrimPrefix(topic, "0x")
	if len(s) < 40 {
		return "0x" + s
	}
	return "0x" + s[len(s)-40:]
}

// amount decodes the non-indexed uint256 amount from the log's data field.
func (l Log) amount() *big.Int {
	s := strings.TrimPrefix(l.Data, "0x")
	v := new(big.Int)
	if s == "" {
		return v
	}
	v.SetString(s, 16)
	return v
}
