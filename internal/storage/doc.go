// Package storage moves job artifacts between the local workdir and object
// storage.
//
// Two gateways implement Gateway: SupabaseGateway talks to Supabase Storage
// and LocalGateway mirrors the same bucket/key layout under a directory.
// Uploads always overwrite, so re-running a job rewrites its artifacts in
// place. Keys are built with the helpers in keys.go.
package storage
