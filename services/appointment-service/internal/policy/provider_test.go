package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(15*time.Minute, map[string]time.Duration{
		"dr-lee": 5 * time.Minute,
		"dr-kim": -time.Minute,
	})
	ctx := context.Background()

	d, err := p.Buffer(ctx, "dr-lee")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = p.Buffer(ctx, "dr-kim")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = p.Buffer(ctx, "dr-other")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)
}
