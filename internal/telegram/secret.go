package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SecretHeader заголовок, в котором Telegram возвращает secret_token
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret секрет вебхука проекта: hex(HMAC-SHA256(signingKey, botToken)).
// Детерминирован, поэтому его не нужно хранить; 64 символа [0-9a-f] укладываются в ограничения Telegram.
func WebhookSecret(signingKey, botToken string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(botToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySecret сравнение за постоянное время; пустой заголовок не проходит
func VerifySecret(signingKey, botToken, got string) bool {
	if got == "" {
		return false
	}
	want := WebhookSecret(signingKey, botToken)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
