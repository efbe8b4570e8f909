// Package dispatch answers questions locally when the caller's token names a
// provider and otherwise forwards them to a remote instance.
package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"neural-how/internal/models"
	"neural-how/internal/token"
)

// Route records which path produced an answer.
type Route int

const (
	RouteLocal Route = iota + 1
	RouteDelegated
)

func (r Route) String() string {
	switch r {
	case RouteLocal:
		return "local"
	case RouteDelegated:
		return "delegated"
	default:
		return "unknown"
	}
}

// Completer runs a decoded completion against its provider.
type Completer interface {
	Complete(ctx context.Context, c models.Completion) (string, error)
}

// Delegator forwards an undecodable question unmodified.
type Delegator interface {
	Delegate(ctx context.Context, q models.Question) (string, error)
}

// Answer is the text returned for a question and how it was obtained.
type Answer struct {
	Text  string
	Route Route
}

// Dispatcher is the local-first front-end.
type Dispatcher struct {
	completer Completer
	delegator Delegator
	log       *zap.Logger
}

// New constructs a Dispatcher. log may be nil.
func New(completer Completer, delegator Delegator, log *zap.Logger) (*Dispatcher, error) {
	if completer == nil {
		return nil, errors.New("completer must not be nil")
	}
	if delegator == nil {
		return nil, errors.New("delegator must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{completer: completer, delegator: delegator, log: log}, nil
}

// Ask decodes the question's token and completes it directly with the
// embedded secret, or delegates the original question when the token is not
// understood.
func (d *Dispatcher) Ask(ctx context.Context, q models.Question) (Answer, error) {
	res := token.Decode(q)

	if comp, ok := res.Completion(); ok {
		d.log.Debug("answering locally",
			zap.String("provider", comp.Provider.Tag()),
			zap.String("engine", comp.Engine),
		)
		text, err := d.completer.Complete(ctx, comp)
		if err != nil {
			return Answer{}, err
		}
		return Answer{Text: text, Route: RouteLocal}, nil
	}

	original, _ := res.Question()
	d.log.Debug("token not decodable, delegating")
	text, err := d.delegator.Delegate(ctx, original)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Route: RouteDelegated}, nil
}
