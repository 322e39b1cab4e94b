// internal/dialog/dialog.go

// Package dialog abstracts request/response exchanges with a single user:
// labeled button choices and free-text replies, both with a bounded wait.
package dialog

import (
	"context"
	"errors"
	"time"

	"github.com/okimu/okimu/internal/models"
)

// ErrTimedOut is returned when the user does not answer within the session's
// timeout. Callers treat it as silent abandonment, never as a reportable
// error.
var ErrTimedOut = errors.New("dialog: timed out")

// DefaultTimeout bounds every prompt, the free-text room-name prompt
// included.
const DefaultTimeout = 60 * time.Second

// Choice is one labeled option presented to a user.
type Choice struct {
	ID    string
	Label string
}

// Session is the interactive-dialog capability for one conversation surface.
type Session interface {
	// PresentChoices shows labeled options and waits for the user's pick.
	PresentChoices(ctx context.Context, user models.User, prompt string, choices []Choice) (Choice, error)
	// AwaitReply prompts for and waits on a free-text answer.
	AwaitReply(ctx context.Context, user models.User, prompt string) (string, error)
}
