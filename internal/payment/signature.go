package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// expectedSignature computes the gateway confirmation signature:
// hex(HMAC-SHA256(secret, "<orderID>|<paymentID>")).
func expectedSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// validSignature compares the presented signature in constant time.
func validSignature(secret, orderID, paymentID, presented string) bool {
	expected := expectedSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(presented))
}
