package utxo

import (
	"strconv"
	"strings"
)

// addressOrOutpoint implements SPEC_FULL §4.2's addressing rule: the
// resolved scriptPubKey address if one exists, else the synthetic
// "<txid>:<vout>" form (an unspendable-to-anyone-else sentinel the rest of
// the pipeline still aggregates correctly by).
func addressOrOutpoint(v Vout, txid string) string {
	if addr, ok := v.Address(); ok {
		return addr
	}
	return outpoint(txid, v.N)
}

func outpoint(txid string, vout uint32) string {
	return txid + ":" + strconv.FormatUint(uint64(vout), 10)
}

// isValidAddress implements SPEC_FULL §4.2's is_valid_address: a synthetic
// outpoint address (containing ':') is not a real address.
func isValidAddress(a string) bool {
	return !strings.Contains(a, ":")
}
