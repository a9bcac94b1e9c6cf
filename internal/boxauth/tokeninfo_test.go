package boxauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenInfo_ValidAt(t *testing.T) {
	epoch := time.Unix(0, 0)

	// Literal boundary case: acquired at 1000ms with a 3000ms TTL and 500ms
	// buffer, the token is usable strictly before the 3500ms mark.
	info := &TokenInfo{
		AccessToken: "a1",
		AcquiredAt:  epoch.Add(1000 * time.Millisecond),
		TTL:         3000 * time.Millisecond,
	}
	buffer := 500 * time.Millisecond

	assert.True(t, info.ValidAt(epoch.Add(3000*time.Millisecond), buffer))
	assert.False(t, info.ValidAt(epoch.Add(3500*time.Millisecond), buffer))
	assert.False(t, info.ValidAt(epoch.Add(3501*time.Millisecond), buffer))
	assert.True(t, info.ValidAt(epoch.Add(3499*time.Millisecond), buffer))
}

func TestTokenInfo_ValidAt_NilAndEmpty(t *testing.T) {
	var nilInfo *TokenInfo

	assert.False(t, nilInfo.ValidAt(time.Now(), 0))

	empty := &TokenInfo{AcquiredAt: time.Now(), TTL: time.Hour}
	assert.False(t, empty.ValidAt(time.Now(), 0))
}
