package derivedcache

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxplima/uxragent/internal/model"
)

type fakeReader struct {
	revision  uint64
	instances []*model.Instance
	calls     int32
}

func (f *fakeReader) GetRevision() uint64 { return f.revision }

func (f *fakeReader) GetIndexedInstances() []*model.Instance {
	atomic.AddInt32(&f.calls, 1)
	return f.instances
}

func TestIndexedListingMemoizedPerRevision(t *testing.T) {
	c := New()
	r := &fakeReader{revision: 1, instances: []*model.Instance{{ID: "a"}}}

	first := c.IndexedListing(r)
	second := c.IndexedListing(r)

	require.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls), "second call should hit the memoized entry")
}

func TestIndexedListingRecomputesOnNewRevision(t *testing.T) {
	c := New()
	r := &fakeReader{revision: 1, instances: []*model.Instance{{ID: "a"}}}
	c.IndexedListing(r)

	r.revision = 2
	r.instances = []*model.Instance{{ID: "a"}, {ID: "b"}}
	listing := c.IndexedListing(r)

	assert.Len(t, listing, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&r.calls))
}

func TestInvalidateDropsStaleRevisionEntries(t *testing.T) {
	c := New()
	r := &fakeReader{revision: 1, instances: []*model.Instance{{ID: "a"}}}
	c.IndexedListing(r)

	c.Invalidate(1)
	c.IndexedListing(r)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls), "entry for the current revision is kept")

	c.Invalidate(2)
	c.IndexedListing(r)
	assert.Equal(t, int32(2), atomic.LoadInt32(&r.calls), "entry invalidated once revision no longer matches")
}

func TestSnapshotPayloadProjectsFields(t *testing.T) {
	c := New()
	r := &fakeReader{revision: 1, instances: []*model.Instance{
		{ID: "a", ClassName: "Part", Name: "Baseplate", Path: []string{"Workspace", "Baseplate"}, ParentID: "ws"},
	}}

	views := c.SnapshotPayload(r)
	require.Len(t, views, 1)
	assert.Equal(t, "Workspace.Baseplate", views[0].PathString)
	assert.Equal(t, "ws", views[0].ParentID)
}

func TestSchemaMemoizedPerClassFilter(t *testing.T) {
	c := New()
	r := &fakeReader{revision: 1, instances: []*model.Instance{{ID: "a", ClassName: "Part"}}}

	var computeCalls int32
	compute := func(instances []*model.Instance, classFilter string) interface{} {
		atomic.AddInt32(&computeCalls, 1)
		return len(instances)
	}

	c.Schema(r, "", SchemaComputer(compute))
	c.Schema(r, "", SchemaComputer(compute))
	assert.Equal(t, int32(1), atomic.LoadInt32(&computeCalls))

	c.Schema(r, "Part", SchemaComputer(compute))
	assert.Equal(t, int32(2), atomic.LoadInt32(&computeCalls), "distinct class filter is a distinct cache key")
}
