package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
	"github.com/eugenenazirov/cryptoknapsack/internal/playback"
	"github.com/eugenenazirov/cryptoknapsack/internal/session"
	"github.com/eugenenazirov/cryptoknapsack/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// DefaultMaxCapacity bounds capacity updates and stateless solves.
const DefaultMaxCapacity = 1 << 16

// Handler wires the algorithm registry, the session knapsack and the player
// into HTTP handlers.
type Handler struct {
	registry *knapsack.Registry
	session  *session.Knapsack
	player   *playback.Player
	events   http.Handler

	maxCapacity int
	clock       func() time.Time

	mu             sync.RWMutex
	itemsUpdatedAt time.Time

	// runMu serializes playback starts with session edits.
	runMu sync.Mutex
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithEvents mounts the playback event stream.
func WithEvents(events http.Handler) HandlerOption {
	return func(h *Handler) {
		h.events = events
	}
}

// WithMaxCapacity sets the largest capacity accepted by the API.
func WithMaxCapacity(limit int) HandlerOption {
	return func(h *Handler) {
		if limit >= 0 {
			h.maxCapacity = limit
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(registry *knapsack.Registry, sess *session.Knapsack, player *playback.Player, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:    registry,
		session:     sess,
		player:      player,
		maxCapacity: DefaultMaxCapacity,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.itemsUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	_ = r
	names := h.registry.Names()
	resp := algorithmsResponse{Algorithms: make([]algorithmInfo, 0, len(names))}
	for _, name := range names {
		resp.Algorithms = append(resp.Algorithms, algorithmInfo{Name: name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetItems(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := itemsResponse{
		Items:     h.session.Items(),
		UpdatedAt: h.currentItemsUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutItems(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid items", "items must contain at least one entry")
		return
	}

	if !h.lockIdle(w) {
		return
	}
	err := h.session.ReplaceItems(req.Items)
	h.runMu.Unlock()
	if err != nil {
		if errors.Is(err, storage.ErrInvalidItems) {
			writeError(w, http.StatusBadRequest, "Invalid items", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markItemsUpdated()

	resp := itemsResponse{
		Items:     h.session.Items(),
		UpdatedAt: h.currentItemsUpdatedAt(),
		Message:   "Items updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetKnapsack(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, knapsackResponse{Snapshot: h.session.Snapshot()})
}

func (h *Handler) handlePutCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if req.Capacity == nil {
		writeError(w, http.StatusBadRequest, "Invalid capacity", "capacity is required")
		return
	}
	if !h.validCapacity(w, *req.Capacity) {
		return
	}

	if !h.lockIdle(w) {
		return
	}
	evicted, err := h.session.SetCapacity(*req.Capacity)
	h.runMu.Unlock()
	if err != nil {
		if errors.Is(err, session.ErrInvalidCapacity) {
			writeError(w, http.StatusBadRequest, "Invalid capacity", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, knapsackResponse{
		Snapshot: h.session.Snapshot(),
		Evicted:  evicted,
	})
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item id", "item id must be an integer")
		return
	}

	if !h.lockIdle(w) {
		return
	}
	selected, err := h.session.Toggle(id)
	h.runMu.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownItem):
			writeError(w, http.StatusNotFound, "Unknown item", err.Error())
		case errors.Is(err, session.ErrWouldOverflow):
			writeError(w, http.StatusUnprocessableEntity, "Item does not fit", err.Error(),
				"Deselect another item or increase the capacity")
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{
		ItemID:   id,
		Selected: selected,
		Knapsack: h.session.Snapshot(),
	})
}

func (h *Handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	alg, ok := h.lookupAlgorithm(w, req.Algorithm)
	if !ok {
		return
	}

	capacity := h.session.Capacity()
	if req.Capacity != nil {
		if !h.validCapacity(w, *req.Capacity) {
			return
		}
		capacity = *req.Capacity
	}

	items := h.session.Items()

	start := time.Now()
	ids := alg.Solve(items, capacity)
	elapsed := time.Since(start)
	if ids == nil {
		ids = []int{}
	}

	summary, err := knapsack.Summarize(items, ids)
	if err != nil {
		writeInternalError(w, fmt.Errorf("%s returned an invalid selection: %w", alg.DisplayName(), err))
		return
	}

	resp := solveResponse{
		Algorithm:         alg.DisplayName(),
		Capacity:          capacity,
		ItemIDs:           ids,
		Count:             summary.Count,
		TotalSize:         summary.TotalSize,
		TotalProfit:       summary.TotalProfit,
		Remaining:         capacity - summary.TotalSize,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	var req playbackStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	alg, ok := h.lookupAlgorithm(w, req.Algorithm)
	if !ok {
		return
	}

	h.runMu.Lock()
	info, err := h.player.Start(alg)
	h.runMu.Unlock()
	if err != nil {
		if errors.Is(err, playback.ErrRunActive) {
			writeError(w, http.StatusConflict, "Playback in progress", err.Error(),
				"Stop the current run and wait for it to finish")
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, info)
}

func (h *Handler) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, playbackStopResponse{Stopped: h.player.Stop()})
}

func (h *Handler) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, h.player.Status())
}

func (h *Handler) handlePlaybackEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "Event stream unavailable", "no event stream is configured")
		return
	}
	h.events.ServeHTTP(w, r)
}

func (h *Handler) lookupAlgorithm(w http.ResponseWriter, name string) (knapsack.Algorithm, bool) {
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "algorithm is required")
		return nil, false
	}
	alg, ok := h.registry.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown algorithm", fmt.Sprintf("no algorithm named %q", name),
			"Available algorithms: "+strings.Join(h.registry.Names(), ", "))
		return nil, false
	}
	return alg, true
}

func (h *Handler) validCapacity(w http.ResponseWriter, capacity int) bool {
	if capacity < 0 || capacity > h.maxCapacity {
		writeError(w, http.StatusBadRequest, "Invalid capacity",
			fmt.Sprintf("capacity must be between 0 and %d", h.maxCapacity))
		return false
	}
	return true
}

// lockIdle acquires runMu when no run is pending and reports true; the caller
// unlocks it once the session edit is done. Otherwise it writes a 409.
func (h *Handler) lockIdle(w http.ResponseWriter) bool {
	h.runMu.Lock()
	if !h.player.Active() {
		return true
	}
	h.runMu.Unlock()
	writeError(w, http.StatusConflict, "Playback in progress", playback.ErrRunActive.Error(),
		"Wait for the current run to finish")
	return false
}

func (h *Handler) currentItemsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.itemsUpdatedAt
}

func (h *Handler) markItemsUpdated() {
	h.mu.Lock()
	h.itemsUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type itemsRequest struct {
	Items []knapsack.Item `json:"items"`
}

type capacityRequest struct {
	Capacity *int `json:"capacity"`
}

type solveRequest struct {
	Algorithm string `json:"algorithm"`
	Capacity  *int   `json:"capacity"`
}

type playbackStartRequest struct {
	Algorithm string `json:"algorithm"`
}

type algorithmInfo struct {
	Name string `json:"name"`
}

type algorithmsResponse struct {
	Algorithms []algorithmInfo `json:"algorithms"`
}

type itemsResponse struct {
	Items     []knapsack.Item `json:"items"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Message   string          `json:"message,omitempty"`
}

type knapsackResponse struct {
	session.Snapshot
	Evicted []int `json:"evicted,omitempty"`
}

type toggleResponse struct {
	ItemID   int              `json:"itemId"`
	Selected bool             `json:"selected"`
	Knapsack session.Snapshot `json:"knapsack"`
}

type solveResponse struct {
	Algorithm         string `json:"algorithm"`
	Capacity          int    `json:"capacity"`
	ItemIDs           []int  `json:"itemIds"`
	Count             int    `json:"count"`
	TotalSize         int    `json:"totalSize"`
	TotalProfit       int    `json:"totalProfit"`
	Remaining         int    `json:"remaining"`
	CalculationTimeMs int64  `json:"calculationTimeMs"`
}

type playbackStopResponse struct {
	Stopped bool `json:"stopped"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
