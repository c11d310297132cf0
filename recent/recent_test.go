package recent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/commerce"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/store"
)

// viewRecorder stubs the single gateway method the tracker uses
type viewRecorder struct {
	gateway.Gateway

	mu    sync.Mutex
	views [][2]string // session id, product id
	err   error
}

func (r *viewRecorder) RecordProductView(ctx context.Context, sessionID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.views = append(r.views, [2]string{sessionID, productID})
	return nil
}

func (r *viewRecorder) recorded() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][2]string, len(r.views))
	copy(out, r.views)
	return out
}

func newTracker(t *testing.T, opts ...TrackerOption) (*Tracker, *store.MemoryStore, *viewRecorder) {
	t.Helper()
	st := store.NewMemoryStore()
	gw := &viewRecorder{}
	resolver := identity.NewResolver(st, zap.NewNop())
	_, err := resolver.Restore(context.Background())
	require.NoError(t, err)
	return NewTracker(st, gw, resolver, zap.NewNop(), opts...), st, gw
}

func productIDs(views []View) []string {
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ProductID
	}
	return ids
}

func TestTracker_Record(t *testing.T) {
	tracker, st, gw := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "P1"))
	require.NoError(t, tracker.Record(ctx, "P2"))
	tracker.Flush()

	assert.Equal(t, []string{"P2", "P1"}, productIDs(tracker.Items()))

	// Each view was reported with the anonymous session id attached
	recorded := gw.recorded()
	require.Len(t, recorded, 2)
	sessionID := recorded[0][0]
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, [2]string{sessionID, "P2"}, recorded[1])

	// And the snapshot is durable
	raw, err := st.Get(ctx, store.KeyRecentlyViewed)
	require.NoError(t, err)
	assert.Contains(t, raw, "P1")
}

func TestTracker_Record_MovesToFront(t *testing.T) {
	tracker, _, _ := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "P1"))
	require.NoError(t, tracker.Record(ctx, "P2"))
	require.NoError(t, tracker.Record(ctx, "P1"))
	tracker.Flush()

	assert.Equal(t, []string{"P1", "P2"}, productIDs(tracker.Items()))
	assert.Equal(t, 2, tracker.Len())
}

func TestTracker_Record_TrimsToCapacity(t *testing.T) {
	tracker, _, _ := newTracker(t, WithCapacity(3))
	ctx := context.Background()

	for _, id := range []string{"P1", "P2", "P3", "P4"} {
		require.NoError(t, tracker.Record(ctx, id))
	}
	tracker.Flush()

	assert.Equal(t, []string{"P4", "P3", "P2"}, productIDs(tracker.Items()))
}

func TestTracker_Record_EmptyProductID(t *testing.T) {
	tracker, _, _ := newTracker(t)
	err := tracker.Record(context.Background(), "")
	assert.ErrorIs(t, err, commerce.ErrInvalidProductID)
	assert.Zero(t, tracker.Len())
}

func TestTracker_Record_ReportFailureKeepsLocal(t *testing.T) {
	tracker, _, gw := newTracker(t)
	gw.err = gateway.ErrGatewayUnavailable

	require.NoError(t, tracker.Record(context.Background(), "P1"))
	tracker.Flush()

	assert.Equal(t, 1, tracker.Len())
}

func TestTracker_Load(t *testing.T) {
	tracker, st, _ := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "P1"))
	require.NoError(t, tracker.Record(ctx, "P2"))
	tracker.Flush()

	reloaded := NewTracker(st, &viewRecorder{}, identity.NewResolver(st, zap.NewNop()), zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"P2", "P1"}, productIDs(reloaded.Items()))
}

func TestTracker_Load_CorruptSnapshot(t *testing.T) {
	tracker, st, _ := newTracker(t)
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.KeyRecentlyViewed, "not json"))

	require.NoError(t, tracker.Load(ctx))
	assert.Zero(t, tracker.Len())
}

func TestTracker_Clear(t *testing.T) {
	tracker, st, _ := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "P1"))
	tracker.Flush()
	tracker.Clear(ctx)

	assert.Zero(t, tracker.Len())
	_, err := st.Get(ctx, store.KeyRecentlyViewed)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}
