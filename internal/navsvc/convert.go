package navsvc

import (
	"github.com/signalsfoundry/orrery/camera"
	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/nav"
	"google.golang.org/protobuf/types/known/structpb"
)

// StateFields renders the navigation state and camera phase as the map
// carried by every unary response.
func StateFields(snap nav.Snapshot, phase camera.Phase) map[string]any {
	return map[string]any{
		"tracked_id":               snap.TrackedID,
		"is_tracking":              snap.IsTracking,
		"target_size":              snap.TargetSize,
		"pending_navigation_id":    snap.PendingNavigationID,
		"is_returning_to_overview": snap.IsReturningToOverview,
		"phase":                    phase.String(),
	}
}

// FrameFields renders a frame for the watch stream and the websocket feed.
func FrameFields(f engine.Frame) map[string]any {
	bodies := make([]any, 0, len(f.Bodies))
	for _, b := range f.Bodies {
		bodies = append(bodies, map[string]any{
			"id":        b.ID,
			"name":      b.Name,
			"kind":      b.Kind.String(),
			"size":      b.Size,
			"parent_id": b.ParentID,
			"position":  vec(b.Position),
		})
	}
	return map[string]any{
		"index": f.Index,
		"time":  f.Time,
		"state": StateFields(f.Nav, f.Phase),
		"camera": map[string]any{
			"position": vec(f.Camera.Position),
			"target":   vec(f.Camera.Target),
		},
		"panel": map[string]any{
			"id":       f.Panel.ID,
			"title":    f.Panel.Title,
			"subtitle": f.Panel.Subtitle,
			"visible":  f.Panel.Visible,
			"detail":   f.Panel.Detail,
		},
		"menu":   f.Menu,
		"bodies": bodies,
	}
}

// FrameStruct converts a frame into a protobuf Struct.
func FrameStruct(f engine.Frame) (*structpb.Struct, error) {
	return structpb.NewStruct(FrameFields(f))
}

func vec(v core.Vec3) []any {
	return []any{v.X, v.Y, v.Z}
}
