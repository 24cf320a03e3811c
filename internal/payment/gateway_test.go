package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
)

func signedHeader(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func testGateway(at time.Time) *HTTPGateway {
	g := NewHTTPGateway(db.GatewayConfig{WebhookSecret: "whsec_test"})
	g.now = func() time.Time { return at }
	return g
}

func Test_VerifyWebhook_ValidSignature(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"transaction_id":"txn_1","user_id":"42","borrow_id":"7","amount":"500.00","currency":"usd","status":"completed"}`)

	g := testGateway(now)
	event, err := g.VerifyWebhook(payload, signedHeader("whsec_test", payload, now))
	require.NoError(t, err)

	assert.Equal(t, "txn_1", event.TransactionID)
	assert.Equal(t, int64(42), event.UserID)
	assert.Equal(t, int64(7), event.BorrowID)
	assert.Equal(t, "500.00", event.Amount.StringFixed(2))
	assert.Equal(t, "completed", event.Status)
}

func Test_VerifyWebhook_TamperedPayload(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"transaction_id":"txn_1","status":"completed"}`)
	header := signedHeader("whsec_test", payload, now)

	g := testGateway(now)
	_, err := g.VerifyWebhook([]byte(`{"transaction_id":"txn_1","status":"failed"}`), header)
	require.Error(t, err)
}

func Test_VerifyWebhook_WrongSecret(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"transaction_id":"txn_1"}`)

	g := testGateway(now)
	_, err := g.VerifyWebhook(payload, signedHeader("whsec_other", payload, now))
	require.Error(t, err)
}

func Test_VerifyWebhook_ExpiredTimestamp(t *testing.T) {
	sentAt := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"transaction_id":"txn_1"}`)
	header := signedHeader("whsec_test", payload, sentAt)

	g := testGateway(sentAt.Add(10 * time.Minute))
	_, err := g.VerifyWebhook(payload, header)
	require.Error(t, err)
}

func Test_VerifyWebhook_MalformedHeader(t *testing.T) {
	g := testGateway(time.Now())

	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		_, err := g.VerifyWebhook([]byte(`{}`), header)
		assert.Error(t, err, "header %q", header)
	}
}

func Test_VerifyWebhook_MissingTransactionID(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"status":"completed"}`)

	g := testGateway(now)
	_, err := g.VerifyWebhook(payload, signedHeader("whsec_test", payload, now))
	require.Error(t, err)
}
