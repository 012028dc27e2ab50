package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Key and vector published in Kraken's REST authentication guide
const (
	docsSecret = "kQH5HW/8p1uGOVjbgWA7FunAmGO8lsSUXNsu3eow76sz84Q18fWxnyRzBHCd3pd5nE9qa99HAZtuZuj6F1huXg=="
	testNonce  = "1616492376594"
)

func TestSign(t *testing.T) {
	t.Run("matches published AddOrder vector", func(t *testing.T) {
		payload := NewPayload().
			Set("nonce", testNonce).
			Set("ordertype", "limit").
			Set("pair", "XBTUSD").
			Set("price", "37500").
			Set("type", "buy").
			Set("volume", "1.25")

		signature, err := Sign("/0/private/AddOrder", payload, docsSecret)

		require.NoError(t, err)
		assert.Equal(t, "4/dpxb3iT4tp/ZCVEwSnEsLxx0bqyhLpdfOpc6fn7OR8+UClSV5n9E6aSS8MPtnRfp32bAb0nmbRn6H8ndwLUQ==", signature)
	})

	t.Run("matches pinned Balance vector", func(t *testing.T) {
		payload := NewPayload().Set("nonce", testNonce)

		signature, err := Sign("/0/private/Balance", payload, docsSecret)

		require.NoError(t, err)
		assert.Equal(t, "1nH4vwR+8FHiYh1QT649xXkGd3JR3x0DWkgv3u9Ed/Qqv6KPtgQpEU4m+Emb/VgpEji3j1XNwI+HCbfXxmrTOg==", signature)
	})

	t.Run("matches pinned QueryOrders vector", func(t *testing.T) {
		payload := NewPayload().
			Set("nonce", testNonce).
			Set("txid", "A, B, C").
			Set("trades", "true")

		signature, err := Sign("/0/private/QueryOrders", payload, docsSecret)

		require.NoError(t, err)
		assert.Equal(t, "OLTkfj7kreT9SQyqHDqd/4fZ/J6tEBuHFfymKfa/aBqaRKW1OfSyow6qLM9XC9Ac0SO0oR4j7uYCfIffOBvj3w==", signature)
	})

	t.Run("rejects short test key that is not valid base64", func(t *testing.T) {
		// 23 characters, so it cannot decode under standard padding rules
		payload := NewPayload().Set("nonce", testNonce)

		signature, err := Sign("/0/private/Balance", payload, "t0/wkYCTrM+0YE2r8Y/0Q==")

		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.Empty(t, signature)
	})

	t.Run("is deterministic", func(t *testing.T) {
		payload := NewPayload().Set("nonce", testNonce).Set("pair", "XBTEUR")

		sig1, err1 := Sign("/0/private/Balance", payload, docsSecret)
		sig2, err2 := Sign("/0/private/Balance", NewPayload().Set("nonce", testNonce).Set("pair", "XBTEUR"), docsSecret)

		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, sig1, sig2)
	})

	t.Run("differs when only the nonce differs", func(t *testing.T) {
		sig1, err := Sign("/0/private/Balance", NewPayload().Set("nonce", "1616492376594"), docsSecret)
		require.NoError(t, err)
		sig2, err := Sign("/0/private/Balance", NewPayload().Set("nonce", "1616492376595"), docsSecret)
		require.NoError(t, err)

		assert.NotEqual(t, sig1, sig2)
		assert.Equal(t, "9qsYnAxkAt04Q9bMOFfYWglY6B/1ShQtPB2GO659iotiVGrR7HnEEhGS8TlToTniR3G4Y+HNrzV7X6iksOh5jQ==", sig2)
	})

	t.Run("differs when the path differs", func(t *testing.T) {
		payload := NewPayload().Set("nonce", testNonce)

		sig1, _ := Sign("/0/private/Balance", payload, docsSecret)
		sig2, _ := Sign("/0/private/OpenOrders", payload, docsSecret)

		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("depends on field order", func(t *testing.T) {
		p1 := NewPayload().Set("nonce", testNonce).Set("a", "1").Set("b", "2")
		p2 := NewPayload().Set("nonce", testNonce).Set("b", "2").Set("a", "1")

		sig1, _ := Sign("/0/private/Balance", p1, docsSecret)
		sig2, _ := Sign("/0/private/Balance", p2, docsSecret)

		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("requires nonce", func(t *testing.T) {
		payload := NewPayload().Set("pair", "XBTUSD")

		_, err := Sign("/0/private/Balance", payload, docsSecret)

		assert.True(t, errors.Is(err, ErrMissingField))
		assert.Contains(t, err.Error(), "nonce")
	})

	t.Run("error does not leak the secret", func(t *testing.T) {
		secret := "not-base64!!"

		_, err := Sign("/0/private/Balance", NewPayload().Set("nonce", testNonce), secret)

		require.Error(t, err)
		assert.NotContains(t, err.Error(), secret)
	})
}

func TestSigner(t *testing.T) {
	t.Run("exposes api key", func(t *testing.T) {
		signer := NewSigner("my-key", docsSecret)
		assert.Equal(t, "my-key", signer.APIKey())
		assert.NoError(t, signer.Validate())
	})

	t.Run("validate rejects bad secret", func(t *testing.T) {
		assert.ErrorIs(t, NewSigner("key", "%%%").Validate(), ErrInvalidKey)
		assert.ErrorIs(t, NewSigner("key", "").Validate(), ErrInvalidKey)
		assert.Error(t, NewSigner("", docsSecret).Validate())
	})

	t.Run("redacts secret when formatted", func(t *testing.T) {
		signer := NewSigner("my-key", docsSecret)
		out := fmt.Sprintf("%v %s", signer, signer)
		assert.NotContains(t, out, docsSecret)
		assert.Contains(t, out, "REDACTED")
	})
}

func TestSignedRequest(t *testing.T) {
	signer := NewSigner("key", docsSecret)

	t.Run("puts a fresh nonce first", func(t *testing.T) {
		params := NewPayload().Set("txid", "OABC-123")

		signed, signature, err := signer.SignedRequest("/0/private/CancelOrder", params)

		require.NoError(t, err)
		assert.Equal(t, []string{"nonce", "txid"}, signed.Keys())
		assert.True(t, strings.HasPrefix(signed.Encode(), "nonce="))
		expected, err := Sign("/0/private/CancelOrder", signed, docsSecret)
		require.NoError(t, err)
		assert.Equal(t, expected, signature)
	})

	t.Run("does not modify original parameters", func(t *testing.T) {
		params := NewPayload().Set("txid", "OABC-123")

		_, _, err := signer.SignedRequest("/0/private/CancelOrder", params)

		require.NoError(t, err)
		_, hasNonce := params.Get("nonce")
		assert.False(t, hasNonce)
		assert.Equal(t, 1, params.Len())
	})

	t.Run("replaces stale nonce", func(t *testing.T) {
		params := NewPayload().Set("nonce", "1").Set("txid", "X")

		signed, _, err := signer.SignedRequest("/0/private/CancelOrder", params)

		require.NoError(t, err)
		nonce, _ := signed.Get("nonce")
		assert.NotEqual(t, "1", nonce)
		assert.Equal(t, 2, signed.Len())
	})

	t.Run("consecutive requests use increasing nonces", func(t *testing.T) {
		first, _, err := signer.SignedRequest("/0/private/Balance", nil)
		require.NoError(t, err)
		second, _, err := signer.SignedRequest("/0/private/Balance", nil)
		require.NoError(t, err)

		n1, _ := first.Get("nonce")
		n2, _ := second.Get("nonce")
		assert.Less(t, n1, n2)
	})

	t.Run("propagates invalid key", func(t *testing.T) {
		bad := NewSigner("key", "@@@")
		_, _, err := bad.SignedRequest("/0/private/Balance", nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestSigner_Sign(t *testing.T) {
	signer := NewSigner("key", docsSecret)
	payload := NewPayload().Set("nonce", testNonce)

	t.Run("matches the package signature", func(t *testing.T) {
		sig, err := signer.Sign("/0/private/Balance", payload)
		require.NoError(t, err)
		assert.Equal(t,
			"1nH4vwR+8FHiYh1QT649xXkGd3JR3x0DWkgv3u9Ed/Qqv6KPtgQpEU4m+Emb/VgpEji3j1XNwI+HCbfXxmrTOg==", sig)
	})

	t.Run("changes with the payload", func(t *testing.T) {
		sig, err := signer.Sign("/0/private/Balance", payload)
		require.NoError(t, err)

		modified, err := signer.Sign("/0/private/Balance", payload.WithNonce(testNonce).Set("pair", "XBTUSD"))
		require.NoError(t, err)
		assert.NotEqual(t, sig, modified)
	})
}

func TestConcurrentSigning(t *testing.T) {
	signer := NewSigner("key", docsSecret)

	var wg sync.WaitGroup
	var mu sync.Mutex
	signatures := make(map[string]bool)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, sig, err := signer.SignedRequest("/0/private/Balance", nil)
			assert.NoError(t, err)

			mu.Lock()
			signatures[sig] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	// every request carried a distinct nonce
	assert.Len(t, signatures, 100)
}

func BenchmarkSign(b *testing.B) {
	payload := NewPayload().
		Set("nonce", testNonce).
		Set("ordertype", "limit").
		Set("pair", "XBTUSD").
		Set("price", "37500").
		Set("type", "buy").
		Set("volume", "1.25")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Sign("/0/private/AddOrder", payload, docsSecret)
	}
}
