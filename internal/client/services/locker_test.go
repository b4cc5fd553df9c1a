package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLocker_SerializesSameKey(t *testing.T) {
	l := NewKeyLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "alice/phone/subscriptions")
	require.NoError(t, err)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		u, err := l.Lock(ctx, "alice/phone/subscriptions")
		if err == nil {
			acquired.Store(true)
			u()
		}
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "second holder must wait")

	unlock()
	unlock() // second call is a no-op
	<-done
	assert.True(t, acquired.Load())
	assert.Equal(t, 0, l.size())
}

func TestKeyLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewKeyLocker()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "alice/phone/subscriptions")
	require.NoError(t, err)
	defer u1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	u2, err := l.Lock(ctx2, "alice/phone/episode_actions")
	require.NoError(t, err)
	u2()
}

func TestKeyLocker_WaitHonorsContext(t *testing.T) {
	l := NewKeyLocker()
	u, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	u()
	assert.Equal(t, 0, l.size())
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("")
	require.NoError(t, err)
	assert.False(t, p("http://a.fm", models.ConflictRemoteAdd))

	p, err = ParseConflictPolicy("Local-Wins")
	require.NoError(t, err)
	assert.True(t, p("http://a.fm", models.ConflictRemoteAdd))

	_, err = ParseConflictPolicy("coin-flip")
	require.ErrorIs(t, err, common.ErrValidation)
}
