package persist

import (
	"context"

	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

// Outcome tells where a block ended up.
type Outcome string

const (
	OutcomeRemote  Outcome = "remote"
	OutcomeLocal   Outcome = "local"
	OutcomeDropped Outcome = "dropped"
)

// Observer is notified of every recording outcome.
type Observer interface {
	ObservePersist(outcome Outcome)
}

// Recorder writes blocks to the remote sink and falls back to the local
// log. Recording never fails the caller.
type Recorder struct {
	remote   Sink
	local    Sink
	observer Observer
}

// NewRecorder builds a recorder. remote and local may be nil.
func NewRecorder(remote, local Sink, observer Observer) *Recorder {
	return &Recorder{remote: remote, local: local, observer: observer}
}

func (r *Recorder) Record(ctx context.Context, b Block) Outcome {
	if r == nil {
		return OutcomeDropped
	}
	outcome := r.record(ctx, b)
	if r.observer != nil {
		r.observer.ObservePersist(outcome)
	}
	return outcome
}

func (r *Recorder) record(ctx context.Context, b Block) Outcome {
	if r.remote != nil {
		err := r.remote.Append(ctx, b)
		if err == nil {
			return OutcomeRemote
		}
		logx.Warn().Err(err).
			Str("session_id", b.SessionID).
			Str("kind", string(b.Kind)).
			Msg("remote persistence failed; falling back to local log")
	}
	if r.local != nil {
		err := r.local.Append(ctx, b)
		if err == nil {
			return OutcomeLocal
		}
		logx.Error().Err(err).
			Str("session_id", b.SessionID).
			Str("kind", string(b.Kind)).
			Msg("local persistence failed; block dropped")
	}
	return OutcomeDropped
}
