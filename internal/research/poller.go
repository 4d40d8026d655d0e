package research

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/airesearcher/frontend/internal/model"
)

const defaultFailureMessage = "Research failed"

// Subscription is one polling loop over a single job. It ends on its own
// once the job reaches a terminal status, or when Cancel is called.
type Subscription struct {
	session *Session
	jobID   string
	ctx     context.Context
	cancel  context.CancelFunc

	inFlight atomic.Bool
	seq      atomic.Uint64

	// guarded by session.mu
	cancelled bool
	applied   uint64
}

// JobID returns the observed job id
func (sub *Subscription) JobID() string {
	return sub.jobID
}

// Done is closed when polling has stopped, either after a terminal status
// was handled or after Cancel.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.ctx.Done()
}

// Cancel stops polling and aborts in-flight requests. No request that
// completes afterwards touches the session state.
func (sub *Subscription) Cancel() {
	s := sub.session
	s.mu.Lock()
	sub.cancelled = true
	s.mu.Unlock()
	sub.cancel()
}

func (sub *Subscription) run(interval time.Duration) {
	sub.tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-ticker.C:
			sub.tick()
		}
	}
}

// tick launches a poll unless one is still running
func (sub *Subscription) tick() {
	if sub.ctx.Err() != nil {
		return
	}
	if !sub.inFlight.CompareAndSwap(false, true) {
		sub.session.logger.Debug("previous poll still running, skipping tick", "job_id", sub.jobID)
		return
	}

	seq := sub.seq.Add(1)
	go func() {
		defer sub.inFlight.Store(false)
		sub.poll(seq)
	}()
}

func (sub *Subscription) poll(seq uint64) {
	s := sub.session
	ctx := sub.ctx

	snap, err := s.backend.GetStatus(ctx, sub.jobID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("status poll failed", "job_id", sub.jobID, "error", err)
		}
		return
	}

	switch {
	case snap.Status == model.JobStatusCompleted:
		if !s.apply(sub, seq, func(st *ViewState) {
			st.Status = model.ViewStatusSuccess
			setProgress(st, snap)
		}) {
			return
		}
		// the loop ends after results are in so Done means the view is final
		defer sub.cancel()

		results, err := s.backend.GetResults(ctx, sub.jobID)
		if err != nil {
			s.logger.Warn("failed to fetch results", "job_id", sub.jobID, "error", err)
			return
		}
		s.apply(sub, seq, func(st *ViewState) {
			st.Results = results
		})
		s.logger.Info("research completed", "job_id", sub.jobID)

	case snap.Status.IsFailure():
		msg := snap.Error
		if msg == "" {
			msg = defaultFailureMessage
		}
		if s.apply(sub, seq, func(st *ViewState) {
			st.Status = model.ViewStatusError
			st.ErrorMsg = msg
			setProgress(st, snap)
		}) {
			s.logger.Warn("research failed", "job_id", sub.jobID, "status", snap.Status, "error", msg)
			sub.cancel()
		}

	default:
		if !s.apply(sub, seq, func(st *ViewState) {
			st.Status = model.ViewStatusLoading
			setProgress(st, snap)
		}) {
			return
		}

		logs, err := s.backend.GetLogs(ctx, sub.jobID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("log fetch failed", "job_id", sub.jobID, "error", err)
			}
			return
		}
		s.apply(sub, seq, func(st *ViewState) {
			st.Logs = logs
		})
	}
}

func setProgress(st *ViewState, snap *model.JobStatusSnapshot) {
	st.CurrentStage = snap.CurrentStage
	st.Progress = snap.Progress
	st.StageIndex = model.StageIndex(snap.CurrentStage)
}
