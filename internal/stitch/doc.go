// Package stitch assembles synced scene clips into the final deliverable.
//
// The steps run in a fixed order and fail independently: Combine joins the
// clips with crossfades, MixMusic lays a looped bed under the narration,
// BurnCaptions draws word captions in chained passes and Thumbnail grabs a
// poster frame. Each step exposes its ffmpeg argument builder so the
// filter graphs can be checked without running ffmpeg.
package stitch
