package commandexec

import "github.com/uxplima/uxragent/internal/model"

// sceneReader is the subset of scenegraph.Graph needed to resolve refs
// and read diagnostic state, kept as an interface to avoid committing
// this package to one concrete scene-graph implementation.
type sceneReader interface {
	GetInstanceByID(id string) (*model.Instance, bool)
	GetInstanceByPath(path []string) (*model.Instance, bool)
	GetRevision() uint64
}

// resolveRef resolves a Ref to an existing instance, or a not_found Conflict.
func resolveRef(g sceneReader, ref Ref, label string) (*model.Instance, *Conflict) {
	if ref.ID != "" {
		if inst, ok := g.GetInstanceByID(ref.ID); ok {
			return inst, nil
		}
		return nil, notFound(
			map[string]interface{}{label: map[string]interface{}{"id": ref.ID}},
			map[string]interface{}{"currentRevision": g.GetRevision()},
		)
	}
	if inst, ok := g.GetInstanceByPath(ref.Path); ok {
		return inst, nil
	}
	return nil, notFound(
		map[string]interface{}{label: map[string]interface{}{"path": ref.Path}},
		map[string]interface{}{"currentRevision": g.GetRevision()},
	)
}
