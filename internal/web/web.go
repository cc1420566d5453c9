package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"coursecal/internal/calendar"
	"coursecal/internal/config"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

// Generator produces a fresh calendar, typically by re-reading the
// timetable workbook.
type Generator func(ctx context.Context) (*calendar.Collection, error)

// Server serves the generated calendar as a subscription feed.
// Endpoints: /health, /calendar.ics, /api/events and POST /api/refresh.
type Server struct {
	cfg      *config.Config
	generate Generator
	mux      *http.ServeMux

	// The last successful generation. Readers take the read lock; Refresh
	// swaps the whole snapshot.
	mu   sync.RWMutex
	snap *snapshot
}

// snapshot is one rendered calendar plus its occurrences.
type snapshot struct {
	name        string
	body        string
	occurrences []model.Occurrence
	truncated   []string
	updatedAt   time.Time
}

// NewServer constructs a new Server. Call Refresh before serving.
func NewServer(cfg *config.Config, gen Generator) *Server {
	s := &Server{
		cfg:      cfg,
		generate: gen,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="coursecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Refresh regenerates the calendar and swaps the served snapshot. On
// failure the previous snapshot keeps being served.
func (s *Server) Refresh(ctx context.Context) error {
	if s.generate == nil {
		return errors.New("web: no generator configured")
	}
	coll, err := s.generate(ctx)
	if err != nil {
		return fmt.Errorf("web: generate: %w", err)
	}
	body, err := coll.Render()
	if err != nil {
		return fmt.Errorf("web: render: %w", err)
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	parsed, err := ics.Parse([]byte(body), loc)
	if err != nil {
		return fmt.Errorf("web: read back: %w", err)
	}
	res, err := ics.Expand(parsed, ics.ExpandConfig{DisplayLocation: loc})
	if err != nil {
		return fmt.Errorf("web: expand: %w", err)
	}

	s.mu.Lock()
	s.snap = &snapshot{
		name:        coll.Name(),
		body:        body,
		occurrences: res.Occurrences,
		truncated:   res.TruncatedEvents,
		updatedAt:   time.Now(),
	}
	s.mu.Unlock()

	appLog.Info("calendar refreshed", "events", coll.Len(), "occurrences", len(res.Occurrences))
	return nil
}

func (s *Server) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves the last rendered calendar for subscription.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not generated yet")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename*=UTF-8''"+url.PathEscape(snap.name+".ics"))
	http.ServeContent(w, r, snap.name+".ics", snap.updatedAt, strings.NewReader(snap.body))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Calendar        string          `json:"calendar"`
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	RangeStart      *time.Time      `json:"range_start,omitempty"`
	RangeEnd        *time.Time      `json:"range_end,omitempty"`
	DisplayTimeZone string          `json:"display_timezone"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	UID             string    `json:"uid"`
	InstanceKey     string    `json:"instance_key"`
	Summary         string    `json:"summary"`
	Location        string    `json:"location"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ReminderMinutes int       `json:"reminder_minutes"`
}

// handleEvents returns the concrete meetings of the served calendar.
//
// GET /api/events?from=20250901&to=20250930
//   - from, to: optional inclusive date bounds (YYYYMMDD)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not generated yet")
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	q := r.URL.Query()
	from, err := parseDateParam(q.Get("from"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: expected YYYYMMDD")
		return
	}
	to, err := parseDateParam(q.Get("to"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: expected YYYYMMDD")
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(snap.occurrences))
	for _, occ := range snap.occurrences {
		if from != nil && occ.Start.Before(*from) {
			continue
		}
		if to != nil && !occ.Start.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		dtos = append(dtos, occurrenceDTO{
			UID:             occ.UID,
			InstanceKey:     occ.InstanceKey,
			Summary:         occ.Summary,
			Location:        occ.Location,
			Start:           occ.Start,
			End:             occ.End,
			ReminderMinutes: occ.ReminderMinutes,
		})
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Calendar:        snap.name,
		Occurrences:     dtos,
		TruncatedUIDs:   snap.truncated,
		RangeStart:      from,
		RangeEnd:        to,
		DisplayTimeZone: loc.String(),
		GeneratedAt:     snap.updatedAt,
	})
}

// handleRefresh regenerates the calendar on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	if err := s.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	snap := s.current()
	writeJSON(w, http.StatusOK, map[string]any{
		"occurrences":  len(snap.occurrences),
		"generated_at": snap.updatedAt,
	})
}

func parseDateParam(v string, loc *time.Location) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("20060102", v, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
