package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	sig := Sign([]byte("what do ya want for nothing?"), "Jefe")
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", sig)
}

func TestSign_DependsOnSecretAndPayload(t *testing.T) {
	payload := []byte(`{"id":1}`)
	sig := Sign(payload, "secret")

	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Sign(payload, "secret"))
	assert.NotEqual(t, sig, Sign(payload, "other"))
	assert.NotEqual(t, sig, Sign([]byte(`{"id":2}`), "secret"))
}
