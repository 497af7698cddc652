// Package render turns storyboard scenes into synced per-scene clips.
//
// Generate asks the bound provider for each scene's video while the
// narration synthesizer voices it; scenes fan out under a concurrency
// limit. SyncAll then conforms every clip to its narration with ffmpeg so
// the stitcher receives clips whose audio and video share one duration.
package render
