// Package media runs ffmpeg and ffprobe.
//
// Every subprocess goes through a Runner. ExecRunner starts each command in
// its own process group and kills the whole group when the context is
// cancelled, so ffmpeg children never outlive a cancelled job. FFmpeg adds
// the common flags, removes partial outputs on failure, and tags failures
// with services.ErrMediaProcessing.
package media
