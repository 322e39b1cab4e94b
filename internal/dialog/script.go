// internal/dialog/script.go
package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/okimu/okimu/internal/models"
)

// Script is a Session that replays a fixed sequence of answers. It exists
// for tests of the room and protocol packages; a step with TimedOut set
// simulates the user never answering.
type Script struct {
	mu    sync.Mutex
	steps []ScriptStep

	// Prompts records every prompt shown, in order.
	Prompts []string
}

// ScriptStep is one scripted answer. ChoiceID answers PresentChoices; Reply
// answers AwaitReply.
type ScriptStep struct {
	ChoiceID string
	Reply    string
	TimedOut bool
}

// NewScript builds a Script from answers in playback order.
func NewScript(steps ...ScriptStep) *Script {
	return &Script{steps: steps}
}

// Select is a convenience step answering a choice prompt.
func Select(id string) ScriptStep { return ScriptStep{ChoiceID: id} }

// Reply is a convenience step answering a free-text prompt.
func Reply(text string) ScriptStep { return ScriptStep{Reply: text} }

// Timeout is a convenience step simulating an unanswered prompt.
func Timeout() ScriptStep { return ScriptStep{TimedOut: true} }

func (s *Script) next(prompt string) (ScriptStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	if len(s.steps) == 0 {
		return ScriptStep{}, fmt.Errorf("dialog script exhausted at prompt %q", prompt)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step, nil
}

func (s *Script) PresentChoices(_ context.Context, _ models.User, prompt string, choices []Choice) (Choice, error) {
	step, err := s.next(prompt)
	if err != nil {
		return Choice{}, err
	}
	if step.TimedOut {
		return Choice{}, ErrTimedOut
	}
	for _, c := range choices {
		if c.ID == step.ChoiceID {
			return c, nil
		}
	}
	return Choice{}, fmt.Errorf("dialog script: choice %q not offered at prompt %q", step.ChoiceID, prompt)
}

func (s *Script) AwaitReply(_ context.Context, _ models.User, prompt string) (string, error) {
	step, err := s.next(prompt)
	if err != nil {
		return "", err
	}
	if step.TimedOut {
		return "", ErrTimedOut
	}
	return step.Reply, nil
}
