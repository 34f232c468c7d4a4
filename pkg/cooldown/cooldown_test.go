package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_FirstPassImmediate(t *testing.T) {
	l := NewLocal(30)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "porezna-uprava.gov.hr"))
}

func TestLocal_DomainsIndependent(t *testing.T) {
	l := NewLocal(30)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "porezna-uprava.gov.hr"))
	require.NoError(t, l.Wait(ctx, "narodne-novine.nn.hr"), "a second domain has its own bucket")
}

func TestLocal_SecondPassBlocksUntilContextEnds(t *testing.T) {
	l := NewLocal(30)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "porezna-uprava.gov.hr"))
	err := l.Wait(ctx, "porezna-uprava.gov.hr")
	assert.Error(t, err, "immediate reuse of the same domain must wait out the cooldown")
}

func TestLocal_ShortIntervalRefills(t *testing.T) {
	l := NewLocal(0.01)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "fina.hr"))
	require.NoError(t, l.Wait(ctx, "fina.hr"))
}
