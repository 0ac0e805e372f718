package mcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCRC_AppendedWordAlwaysVerifies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, MaxDataWords-1).Draw(t, "n")
		words := make([]uint16, n+1)
		for i := 0; i < n; i++ {
			words[i] = uint16(rapid.IntRange(0, 0xffff).Draw(t, "w"))
		}
		words[n] = defaultCRC.Sum(words[:n])
		assert.True(t, defaultCRC.Check(words))
	})
}

func TestCRC_SingleBitFlipFails(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, MaxDataWords-1).Draw(t, "n")
		words := make([]uint16, n+1)
		for i := 0; i < n; i++ {
			words[i] = uint16(rapid.IntRange(0, 0xffff).Draw(t, "w"))
		}
		words[n] = defaultCRC.Sum(words[:n])

		flipIdx := rapid.IntRange(0, n-1).Draw(t, "flipIdx")
		flipBit := rapid.IntRange(0, 15).Draw(t, "flipBit")
		words[flipIdx] ^= 1 << uint(flipBit)

		assert.False(t, defaultCRC.Check(words))
	})
}

func TestCRC_KnownVector(t *testing.T) {
	// CRC-CCITT (XMODEM), poly 0x1021, init 0x0000, over a single zero word.
	assert.Equal(t, uint16(0), defaultCRC.Sum([]uint16{0}))
}
