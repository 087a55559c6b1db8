package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"storefront-checkout-backend/internal/payments"
)

// Hash fingerprints the content sent to the provider so unchanged carts do
// not trigger a remote update.
func Hash(order payments.Order) string {
	encoded, err := json.Marshal(order)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
