package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// hex(HMAC-SHA256(secret, orderID|paymentID))
func Sign(gatewayOrderID, gatewayPaymentID, secret string) string {
	return hmacHex([]byte(gatewayOrderID+"|"+gatewayPaymentID), secret)
}

// hex(HMAC-SHA256(secret, body))
func SignWebhook(body []byte, secret string) string {
	return hmacHex(body, secret)
}

// 比較は定数時間。秘密鍵や署名が空なら常に false
func VerifySignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	if secret == "" || signature == "" || gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}
	return equalHex(Sign(gatewayOrderID, gatewayPaymentID, secret), signature)
}

func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equalHex(SignWebhook(body, secret), signature)
}

func hmacHex(msg []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
