package model

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlacklistBitsDecomposesMultiBitBitmap(t *testing.T) {
	assert := assert.New(t)

	bits := BlacklistBits(0b101)
	assert.ElementsMatch([]uint64{0b001, 0b100}, bits)

	assert.Nil(BlacklistBits(0))

	single := BlacklistBits(1 << 5)
	assert.Equal([]uint64{1 << 5}, single)
}

func TestNormalizeHostStripsWWW(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("evil.example", NormalizeHost("www.evil.example"))
	assert.Equal("example.com", NormalizeHost("example.com"))
	assert.Equal("www", NormalizeHost("www"))
}

func TestNormalizeDomainLowercasesStripsWWWAndTrailingDot(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("evil.example", NormalizeDomain("Www.Evil.Example."))
	assert.Equal("evil.example", NormalizeDomain("evil.example"))
	assert.Equal("evil.example", NormalizeDomain("WWW.EVIL.EXAMPLE"))
}

func TestFlowNormalizeRejectsMissingEndpoints(t *testing.T) {
	assert := assert.New(t)
	f := &Flow{
		TimeFirst: time.Now(),
		TimeLast:  time.Now(),
	}
	assert.Error(f.Normalize())
}

func TestFlowNormalizeRejectsTimeOrderViolation(t *testing.T) {
	assert := assert.New(t)
	now := time.Now()
	f := &Flow{
		SrcIP:     net.ParseIP("10.0.0.1"),
		DstIP:     net.ParseIP("10.0.0.2"),
		TimeFirst: now,
		TimeLast:  now.Add(-time.Second),
	}
	assert.Error(f.Normalize())
}

func TestFlowNormalizeTruncatesOversizedExtras(t *testing.T) {
	assert := assert.New(t)
	now := time.Now()
	longHost := make([]byte, MaxHostLen+10)
	for i := range longHost {
		longHost[i] = 'a'
	}
	f := &Flow{
		SrcIP:     net.ParseIP("10.0.0.1"),
		DstIP:     net.ParseIP("10.0.0.2"),
		TimeFirst: now,
		TimeLast:  now,
		HTTPHost:  string(longHost),
	}
	assert.NoError(f.Normalize())
	assert.Len(f.HTTPHost, MaxHostLen)
}
