package storage

import (
	"fmt"
	"path"
)

// VideoPrefix is the root of every object belonging to a video.
func VideoPrefix(videoID string) string {
	return path.Join("videos", videoID) + "/"
}

// FinalVideoKey is the stitched video produced by a job.
func FinalVideoKey(videoID, jobID string) string {
	return path.Join("videos", videoID, "jobs", jobID, "final.mp4")
}

// ThumbnailKey is the thumbnail produced by a job.
func ThumbnailKey(videoID, jobID string) string {
	return path.Join("videos", videoID, "jobs", jobID, "thumbnail.jpg")
}

// ScenePrefix holds every rendering of one scene across jobs.
func ScenePrefix(videoID string, sceneNumber int) string {
	return path.Join("videos", videoID, "scenes", fmt.Sprintf("scene-%03d", sceneNumber)) + "/"
}

// SceneVideoKey is the synced clip for a scene rendered by jobID.
func SceneVideoKey(videoID, jobID string, sceneNumber int) string {
	return ScenePrefix(videoID, sceneNumber) + jobID + ".mp4"
}

// SceneAudioKey is the narration for a scene rendered by jobID.
func SceneAudioKey(videoID, jobID string, sceneNumber int) string {
	return ScenePrefix(videoID, sceneNumber) + jobID + ".mp3"
}
