package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/broker/fake"
	"github.com/bucketdist/bucketdist/internal/broker/mocks"
)

func TestInitSeedsBucketQueueOnce(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	require.NoError(t, Init(context.Background(), conn, "owner", "buckets", []string{"a", "b", "c"}))
	assert.Equal(t, 3, b.QueueDepth("buckets"))

	conn2, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)
	require.NoError(t, Init(context.Background(), conn2, "owner", "buckets", []string{"d"}))
	assert.Equal(t, 3, b.QueueDepth("buckets"), "second init must not reseed")
}

func TestInitReleasesLockSoLoserCanProceedAfter(t *testing.T) {
	b := fake.NewBroker()
	conn1, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)
	require.NoError(t, Init(context.Background(), conn1, "owner", "buckets", []string{"a"}))

	conn2, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)
	probe, err := conn2.Channel()
	require.NoError(t, err)
	assert.ErrorIs(t, probe.DeclareQueuePassive("owner"), broker.ErrQueueNotFound, "lock queue must be deleted after init")
	require.NoError(t, Init(context.Background(), conn2, "owner", "buckets", []string{"b", "c"}))
	assert.Equal(t, 1, b.QueueDepth("buckets"))
}

func TestInitConcurrentRaceSeedsExactlyOnce(t *testing.T) {
	b := fake.NewBroker()
	const peers = 8
	var wg sync.WaitGroup
	errs := make([]error, peers)
	for i := 0; i < peers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := b.Gateway().Connect(context.Background(), "ignored")
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = Init(context.Background(), conn, "owner", "buckets", []string{"a", "b"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, b.QueueDepth("buckets"))
}

func TestInitLockReleasedExactlyOnceEvenOnSeedError(t *testing.T) {
	ctrl := gomock.NewController(t)

	conn := mocks.NewMockConnection(ctrl)
	ch := mocks.NewMockChannel(ctrl)

	conn.EXPECT().Channel().Return(ch, nil)
	ch.EXPECT().DeclareQueue("owner", broker.QueueOptions{Exclusive: true}).Return(nil)
	ch.EXPECT().DeclareQueuePassive("buckets").Return(broker.ErrQueueNotFound)
	seedErr := errors.New("boom")
	ch.EXPECT().DeclareQueue("buckets", broker.QueueOptions{}).Return(seedErr)
	ch.EXPECT().DeleteQueue("owner").Return(nil).Times(1)
	ch.EXPECT().Close().Return(nil).Times(1)

	err := Init(context.Background(), conn, "owner", "buckets", []string{"a"})
	assert.ErrorIs(t, err, seedErr)
}
