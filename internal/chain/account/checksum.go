package account

import (
	"strings"

	"golang.org/x/crypto/sha3"
)

// checksum renders addr in EIP-55 mixed-case form: a hex char is
// uppercased when the corresponding nibble of keccak256(lowercase hex) is
// >= 8. SPEC_FULL §4.3 requires checksummed from/to on every account-chain
// Transfer.
func checksum(addr string) string {
	addr = strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(addr) != 40 {
		return "0x" + addr
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(addr))
	hash := h.Sum(nil)

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := addr[i]
		if c >= '0' && c <= '9' {
			out[i] = c
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		} else {
			out[i] = c
		}
	}
	return "0x" + string(out)
}
