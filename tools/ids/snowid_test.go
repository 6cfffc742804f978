package ids

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUniqueAcrossGoroutines(t *testing.T) {
	const workers, per = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestSetNodeID(t *testing.T) {
	t.Cleanup(func() { SetNodeID(1) })

	SetNodeID(4096)
	assert.Equal(t, "1", NodeID())
	SetNodeID(7)
	assert.Equal(t, "7", NodeID())
	assert.Equal(t, int64(7), (Generate()>>seqBits)&maxNode)

	id, err := strconv.ParseInt(ConnID(), 36, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(7), (id>>seqBits)&maxNode)
}

func TestClockBackwardsStaysMonotonic(t *testing.T) {
	g := NewGenerator(3)
	at := epoch.Add(time.Hour)
	g.now = func() time.Time { return at }

	a := g.Next()
	at = at.Add(-time.Second)
	b := g.Next()
	assert.Greater(t, b, a)
}

func TestUUID(t *testing.T) {
	_, err := uuid.Parse(UUID())
	require.NoError(t, err)
	assert.NotEqual(t, UUID(), UUID())
}
