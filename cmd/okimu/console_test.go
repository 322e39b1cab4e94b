// cmd/okimu/console_test.go
package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okimu/okimu/internal/dialog"
	"github.com/okimu/okimu/internal/models"
)

// syncBuffer is a goroutine-safe output sink for console tests.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestConsoleRoutesPromptAnswersAwayFromCommands(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	out := &syncBuffer{}
	c := NewConsole(pr, out)
	c.timeout = time.Second

	// Without a pending prompt a line is a command.
	go pw.Write([]byte("hello world\n"))
	line, err := c.NextLine()
	require.NoError(t, err)
	require.Equal(t, "hello world", line)

	// A pending prompt claims the next line instead of the command stream.
	type result struct {
		choice dialog.Choice
		err    error
	}
	done := make(chan result, 1)
	go func() {
		ch, err := c.PresentChoices(context.Background(), models.User{Username: "op"}, "pick one",
			[]dialog.Choice{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}})
		done <- result{ch, err}
	}()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "pick one")
	}, time.Second, time.Millisecond)

	_, err = pw.Write([]byte("2\n"))
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, "b", res.choice.ID)
}

func TestConsolePromptTimesOut(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := NewConsole(pr, &syncBuffer{})
	c.timeout = 10 * time.Millisecond

	start := time.Now()
	_, err := c.AwaitReply(context.Background(), models.User{Username: "op"}, "name?")
	require.ErrorIs(t, err, dialog.ErrTimedOut)
	require.Less(t, time.Since(start), time.Second)
}

func TestConsoleNextLineReportsEOF(t *testing.T) {
	c := NewConsole(strings.NewReader(""), &syncBuffer{})
	_, err := c.NextLine()
	require.ErrorIs(t, err, io.EOF)
}
