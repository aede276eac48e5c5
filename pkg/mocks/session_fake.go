package mocks

import (
	"context"
	"time"

	"github.com/cascadehq/cascade/pkg/session"
)

// FakeSession is a stateful in-memory stand-in for a live execution
// session. It tracks which names hold values and records every executed
// code string; OnExecute lets a test script per-call outcomes (failures,
// timeouts, side effects like writing an artifact file).
type FakeSession struct {
	Values   map[string]any
	Executed []string
	Closed   bool

	// OnExecute, when set, decides the outcome of each Execute call. A nil
	// hook or a nil return means success.
	OnExecute func(code string) *session.ExecResult
}

func NewFakeSession() *FakeSession {
	return &FakeSession{Values: map[string]any{}}
}

// SessionFactory returns a session.Factory that hands out this fake for
// every project.
func (s *FakeSession) SessionFactory() session.Factory {
	return func(_ context.Context, _ string) (session.Session, error) {
		return s, nil
	}
}

func (s *FakeSession) CheckExist(_ context.Context, names []string) (map[string]bool, error) {
	exist := make(map[string]bool, len(names))
	for _, name := range names {
		_, ok := s.Values[name]
		exist[name] = ok
	}

	return exist, nil
}

func (s *FakeSession) Execute(_ context.Context, code string, _ time.Duration) (*session.ExecResult, error) {
	s.Executed = append(s.Executed, code)

	if s.OnExecute != nil {
		if res := s.OnExecute(code); res != nil {
			return res, nil
		}
	}

	return &session.ExecResult{Status: session.StatusSuccess}, nil
}

func (s *FakeSession) GetValue(_ context.Context, name string) (any, error) {
	value, ok := s.Values[name]
	if !ok {
		return nil, session.ErrValueNotFound
	}

	return value, nil
}

func (s *FakeSession) Close(_ context.Context) error {
	s.Closed = true

	return nil
}

// Bind marks a name as holding a value, as if code binding it had run.
func (s *FakeSession) Bind(name string, value any) {
	s.Values[name] = value
}
