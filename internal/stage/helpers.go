package stage

import (
	"slices"

	"vidforge/internal/project"
)

// Storyboard returns the video's storyboard, or nil when it has none.
func (r *Run) Storyboard() *project.Storyboard {
	if r == nil || r.Video == nil {
		return nil
	}
	return r.Video.Storyboard
}

// Renders reports whether the job renders scene n.
func (r *Run) Renders(n int) bool {
	return slices.Contains(r.Targets, n)
}

// TargetScenes returns the storyboard scenes this job renders, in order.
func (r *Run) TargetScenes() []project.Scene {
	board := r.Storyboard()
	if board == nil {
		return nil
	}
	var out []project.Scene
	for _, scene := range board.Scenes {
		if r.Renders(scene.SceneNumber) {
			out = append(out, scene)
		}
	}
	return out
}

// RenderedScene returns the index of the rendered output for scene n.
func (r *Run) RenderedScene(n int) (int, bool) {
	for i, out := range r.Rendered {
		if out.SceneNumber == n {
			return i, true
		}
	}
	return -1, false
}
