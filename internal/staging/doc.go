// Package staging manages per-job scratch directories under the staging dir.
package staging
