package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{"event":"order.paid","payload":{}}`)

	sig := Sign(body, secret)
	require.NotEmpty(t, sig)
	assert.True(t, VerifySignature(body, sig, secret))
}

func TestVerifySignature_SingleByteMutation(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_1"}}}}`)
	sig := Sign(body, secret)

	// 签名后任意一个字节被改动都必须被拒。
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.False(t, VerifySignature(mutated, sig, secret), "mutation at byte %d accepted", i)
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{}`)
	sig := Sign(body, secret)

	assert.False(t, VerifySignature(body, "", secret), "empty signature")
	assert.False(t, VerifySignature(body, sig, nil), "empty secret")
	assert.False(t, VerifySignature(body, "not-hex-at-all", secret), "garbage signature")
	assert.False(t, VerifySignature(body, sig, []byte("other-secret")), "wrong secret")
	assert.False(t, VerifySignature(body, sig[:len(sig)-2], secret), "truncated signature")
}

func TestVerifySignature_NeverPanicsOnMalformedInput(t *testing.T) {
	assert.NotPanics(t, func() {
		VerifySignature(nil, "deadbeef", []byte("s"))
		VerifySignature([]byte{0x00, 0xff}, "zz", []byte("s"))
	})
}
