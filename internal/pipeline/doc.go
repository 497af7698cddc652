// Package pipeline runs one video job through its stages.
//
// The Orchestrator loads the job and its video, validates the provider
// config against the registry before any render work is dispatched, and
// then drives four stage handlers in order:
//
//	RENDERING_SCENES   generate clips and narration for the target scenes
//	SYNTHESIZING_AUDIO conform each new clip to its narration
//	STITCHING          combine, mix music, burn captions, grab a thumbnail
//	UPLOADING          publish artifacts and build the result
//
// Every attempt gets a fresh workdir that is removed on exit. A failed
// attempt leaves the job PROCESSING with Stage=FAILED so the consumer can
// retry it; only the final attempt moves the job and video to FAILED.
package pipeline
