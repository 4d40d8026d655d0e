// Package research tracks one research job at a time: it submits new jobs,
// polls the backend for their progress and keeps a view model that the
// presentation layer renders.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/airesearcher/frontend/internal/client"
	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/store"
)

const DefaultPollInterval = 5 * time.Second

var errMissingJobID = errors.New("Backend response did not include a job_id")

// ViewState is the reconciled view of the observed job. Logs is replaced
// wholesale on every update and must not be modified by readers.
type ViewState struct {
	JobID        string           `json:"job_id"`
	Status       model.ViewStatus `json:"status"`
	ErrorMsg     string           `json:"error_msg,omitempty"`
	Results      *model.JobResult `json:"results,omitempty"`
	Logs         []model.LogEntry `json:"logs"`
	CurrentStage string           `json:"current_stage"`
	Progress     float64          `json:"progress"`
	StageIndex   int              `json:"stage_index"`
}

// Input is the research form as typed by the user
type Input struct {
	Domain          string                `validate:"required"`
	ResearchFocus   string
	SeedPapers      string
	ModelPreference model.ModelPreference `validate:"omitempty,oneof=gemini-1.5-flash gemini-1.5-pro"`
}

type Options struct {
	Interval        time.Duration
	ModelPreference model.ModelPreference
	Logger          *slog.Logger
}

// Session owns the view state of the research job being observed.
type Session struct {
	backend      client.ResearchBackend
	store        store.KeyValueStore
	validator    *validator.Validate
	logger       *slog.Logger
	interval     time.Duration
	defaultModel model.ModelPreference

	mu        sync.Mutex
	state     ViewState
	sub       *Subscription
	listeners map[int]func(ViewState)
	nextID    int
}

func NewSession(backend client.ResearchBackend, kv store.KeyValueStore, v *validator.Validate, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.ModelPreference == "" {
		opts.ModelPreference = model.DefaultModelPreference
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if v == nil {
		v = validator.New()
	}

	return &Session{
		backend:      backend,
		store:        kv,
		validator:    v,
		logger:       opts.Logger,
		interval:     opts.Interval,
		defaultModel: opts.ModelPreference,
		state:        ViewState{Status: model.ViewStatusIdle, StageIndex: -1},
		listeners:    make(map[int]func(ViewState)),
	}
}

// State returns a snapshot of the current view state
func (s *Session) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to receive a snapshot after every state change. fn
// may be called from polling goroutines. The returned function unregisters it.
func (s *Session) OnChange(fn func(ViewState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// StartResearch submits a new job and remembers its id. On failure it
// returns "" and leaves the session in the error state.
func (s *Session) StartResearch(ctx context.Context, in Input) (string, error) {
	s.update(func(st *ViewState) {
		st.Status = model.ViewStatusLoading
		st.ErrorMsg = ""
	})

	in.Domain = strings.TrimSpace(in.Domain)
	if err := s.validator.Struct(&in); err != nil {
		return "", s.startFailed(errors.New(validationMessage(err)))
	}

	pref := in.ModelPreference
	if pref == "" {
		pref = s.defaultModel
	}
	req := &model.ResearchStartRequest{
		Domain:          in.Domain,
		ResearchFocus:   strings.TrimSpace(in.ResearchFocus),
		SeedPapers:      ParseSeedPapers(in.SeedPapers),
		ModelPreference: pref,
	}

	s.logger.Info("starting research",
		"domain", req.Domain,
		"seed_papers", len(req.SeedPapers),
		"model", req.ModelPreference,
	)

	resp, err := s.backend.StartResearch(ctx, req)
	if err != nil {
		return "", s.startFailed(err)
	}
	if resp.JobID == "" {
		return "", s.startFailed(errMissingJobID)
	}

	if err := s.store.Set(ctx, store.KeyCurrentJobID, resp.JobID); err != nil {
		s.logger.Warn("failed to persist job id", "job_id", resp.JobID, "error", err)
	}

	s.logger.Info("research started", "job_id", resp.JobID)
	return resp.JobID, nil
}

// LastJobID returns the id of the most recently started job
func (s *Session) LastJobID(ctx context.Context) (string, error) {
	return s.store.Get(ctx, store.KeyCurrentJobID)
}

func (s *Session) startFailed(err error) error {
	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}

	s.logger.Error("failed to start research", "error", err)
	s.update(func(st *ViewState) {
		st.Status = model.ViewStatusError
		st.ErrorMsg = msg
	})
	return fmt.Errorf("start research: %w", err)
}

// Observe starts polling jobID, replacing any previous subscription.
func (s *Session) Observe(jobID string) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		session: s,
		jobID:   jobID,
		ctx:     ctx,
		cancel:  cancel,
	}

	s.mu.Lock()
	if prev := s.sub; prev != nil {
		prev.cancelled = true
		prev.cancel()
	}
	s.sub = sub
	s.state = ViewState{
		JobID:      jobID,
		Status:     model.ViewStatusLoading,
		StageIndex: -1,
	}
	if jobID == "" {
		s.state.Status = model.ViewStatusIdle
		sub.cancelled = true
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)

	if jobID == "" {
		cancel()
		return sub
	}

	s.logger.Debug("observing job", "job_id", jobID, "interval", s.interval)
	go sub.run(s.interval)
	return sub
}

// update mutates state outside of any subscription
func (s *Session) update(fn func(*ViewState)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, snapshot)
}

// apply mutates state on behalf of poll seq of sub. It refuses once sub is
// cancelled or replaced, or when a newer poll was already applied.
func (s *Session) apply(sub *Subscription, seq uint64, fn func(*ViewState)) bool {
	s.mu.Lock()
	if sub.cancelled || s.sub != sub || seq < sub.applied {
		s.mu.Unlock()
		return false
	}
	sub.applied = seq
	fn(&s.state)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return true
}

func (s *Session) snapshotLocked() (ViewState, []func(ViewState)) {
	listeners := make([]func(ViewState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return s.state, listeners
}

func notify(listeners []func(ViewState), st ViewState) {
	for _, fn := range listeners {
		fn(st)
	}
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
