package derivedcache

import "github.com/uxplima/uxragent/internal/model"

// SceneReader is the subset of scenegraph.Graph the cache needs to
// compute its products, kept as an interface so the cache package
// doesn't import scenegraph (avoids an import cycle with schema).
type SceneReader interface {
	GetRevision() uint64
	GetIndexedInstances() []*model.Instance
}

// IndexedListing returns the memoized flat ordered listing for the
// current revision.
func (c *Cache) IndexedListing(g SceneReader) []*model.Instance {
	rev := g.GetRevision()
	v, _ := c.getOrCompute(key{revision: rev, product: "listing"}, func() (interface{}, error) {
		return g.GetIndexedInstances(), nil
	})
	return v.([]*model.Instance)
}

// SnapshotPayload returns the memoized agent-visible projection for
// the current revision.
func (c *Cache) SnapshotPayload(g SceneReader) []InstanceView {
	rev := g.GetRevision()
	v, _ := c.getOrCompute(key{revision: rev, product: "snapshot"}, func() (interface{}, error) {
		instances := g.GetIndexedInstances()
		views := make([]InstanceView, 0, len(instances))
		for _, inst := range instances {
			views = append(views, InstanceView{
				ID:         inst.ID,
				ClassName:  inst.ClassName,
				Name:       inst.Name,
				Path:       inst.Path,
				PathString: model.PathString(inst.Path),
				ParentID:   inst.ParentID,
				ChildIDs:   inst.ChildIDs,
				Properties: inst.Properties,
			})
		}
		return views, nil
	})
	return v.([]InstanceView)
}

// SchemaComputer computes the inferred schema for a class filter
// (empty string = all classes), implemented by internal/schema to
// avoid an import cycle.
type SchemaComputer func(instances []*model.Instance, classFilter string) interface{}

// Schema returns the memoized inferred schema for classFilter at the
// current revision.
func (c *Cache) Schema(g SceneReader, classFilter string, compute SchemaComputer) interface{} {
	rev := g.GetRevision()
	v, _ := c.getOrCompute(key{revision: rev, classFilter: classFilter, product: "schema"}, func() (interface{}, error) {
		return compute(g.GetIndexedInstances(), classFilter), nil
	})
	return v
}
