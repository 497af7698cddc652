// Package captions estimates word timings for narrated scenes and renders
// them as ffmpeg drawtext filters.
//
// Caption text is restricted to ASCII letters, digits, spaces and the
// punctuation ". ! ?" so it can be embedded in a filter graph without
// escaping. Accented letters are folded to their base letter first.
package captions
