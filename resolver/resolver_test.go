package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStubResolverReturnsSeededAnswers(t *testing.T) {
	assert := assert.New(t)

	r := NewStubResolver(map[string][]string{
		"evil.example": {"1.2.3.4", "1.2.3.5"},
	})

	addrs, err := r.Resolve(context.Background(), "evil.example")
	assert.NoError(err)
	assert.Equal([]string{"1.2.3.4", "1.2.3.5"}, addrs)

	addrs, err = r.Resolve(context.Background(), "unknown.example")
	assert.NoError(err)
	assert.Nil(addrs)
}
