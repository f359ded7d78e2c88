package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexia-labs/nexia/pkg/cookies"
)

var (
	// ErrNoInput means the chat input never appeared.
	ErrNoInput = errors.New("message input not found")
	// ErrLoginRequired means the service showed its sign-in page.
	ErrLoginRequired = errors.New("service requires login")
)

// Outcome is the tagged result of one strategy attempt.
type Outcome struct {
	OK     bool
	Answer string
	Err    error
	// Authenticated is set when the answer came through a logged-in
	// browser session; Cookies then holds that session's cookies.
	Authenticated bool
	Cookies       []cookies.Cookie
}

func Succeeded(answer string) Outcome {
	return Outcome{OK: true, Answer: answer}
}

func Failed(err error) Outcome {
	return Outcome{Err: err}
}

func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Strategy is one way of getting a question answered.
type Strategy interface {
	Name() string
	Try(ctx context.Context, question string) Outcome
}

// Terminal is a strategy that always produces an answer.
type Terminal interface {
	Name() string
	Answer(question string) string
}

// tryStrategy runs s and converts a panic into a failed outcome.
func tryStrategy(ctx context.Context, s Strategy, question string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("strategy %s panicked: %v", s.Name(), r))
		}
	}()
	out = s.Try(ctx, question)
	if out.OK && out.Answer == "" {
		return Failed(fmt.Errorf("strategy %s returned an empty answer", s.Name()))
	}
	if !out.OK && out.Err == nil {
		out.Err = fmt.Errorf("strategy %s failed", s.Name())
	}
	return out
}
