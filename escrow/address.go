package escrow

import (
	"crypto/sha256"
	"encoding/hex"
)

// Namespace tags every derived escrow address so records can never collide
// with addresses derived for any other record type.
const Namespace = "escrow"

// DeriveAddress maps (Namespace, taskID) to a reproducible storage address
// plus a disambiguator byte. The disambiguator is derived from a second hash
// round over the address material; any caller who knows the namespace and
// task id can recompute both and prove a stored record owns its address.
func DeriveAddress(taskID string) (Address, uint8) {
	h := sha256.New()
	h.Write([]byte(Namespace))
	h.Write([]byte{0})
	h.Write([]byte(taskID))
	sum := h.Sum(nil)

	check := sha256.Sum256(append(sum, Namespace...))
	return Address(hex.EncodeToString(sum)), check[0]
}

// VerifyAddress re-derives the address for taskID and checks both the address
// and the disambiguator against the stored values. Repositories call this on
// every load so a spoofed or squatted row is rejected before any transition
// runs.
func VerifyAddress(taskID string, addr Address, disambiguator uint8) error {
	derived, check := DeriveAddress(taskID)
	if derived != addr || check != disambiguator {
		return ErrAddressMismatch
	}
	return nil
}
