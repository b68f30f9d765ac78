package helpers

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Crockford base32 without I, L, O and U.
const orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewOrderNumber returns a human-facing order number such as MM-20260514-7K3QX9.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("MM-%s-%s", now.UTC().Format("20060102"), buf), nil
}
