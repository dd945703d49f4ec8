// Package session holds the server-side knapsack the playback orchestrator
// drives: the catalog, the capacity and the ordered selection.
package session
