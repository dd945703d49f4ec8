// Package application provides application initialization and dependency wiring.
// It builds the item storage, the session knapsack, the real-time playback
// scheduler and player, the websocket event hub, the HTTP handlers and router,
// and the HTTP server, keeping the main package focused on CLI parsing and
// orchestration.
package application
