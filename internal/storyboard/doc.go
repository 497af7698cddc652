// Package storyboard plans the scene list for a video from a one-line story
// idea. The planner asks a text model for structured JSON, either Gemini
// through genai or any OpenAI-compatible chat endpoint, and normalizes the
// answer into a storyboard whose scene numbers are contiguous from 1.
package storyboard
