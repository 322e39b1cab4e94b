// cmd/okimu/console.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okimu/okimu/internal/dialog"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
)

// Console is a line-oriented front end for running the bot without a chat
// platform: it implements messaging.Messenger and dialog.Session over a
// single reader/writer pair. One goroutine owns the input and routes each
// line to a pending prompt when one is waiting, otherwise to the command
// stream, so a dialog answer is never consumed as a command.
type Console struct {
	outMu sync.Mutex
	out   io.Writer

	commands chan string      // lines for the dispatch loop
	prompts  chan chan string // registered prompt waiters, served first
	closed   chan struct{}    // input exhausted
	readErr  error            // set before closed, read after

	timeout time.Duration
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:      out,
		commands: make(chan string),
		prompts:  make(chan chan string, 4),
		closed:   make(chan struct{}),
		timeout:  dialog.DefaultTimeout,
	}
	go c.readLoop(in)
	return c
}

func (c *Console) readLoop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		select {
		case waiter := <-c.prompts:
			waiter <- line
		default:
			c.commands <- line
		}
	}
	c.readErr = scanner.Err()
	close(c.closed)
	close(c.commands)
}

// NextLine reads one command line of input. io.EOF when the input is
// exhausted.
func (c *Console) NextLine() (string, error) {
	line, ok := <-c.commands
	if !ok {
		if c.readErr != nil {
			return "", c.readErr
		}
		return "", io.EOF
	}
	return line, nil
}

// register claims the next line of input for a prompt. It must run before
// the prompt text is printed, so the answer cannot race into the command
// stream.
func (c *Console) register() (chan string, bool) {
	waiter := make(chan string, 1)
	select {
	case c.prompts <- waiter:
		return waiter, true
	default:
		return nil, false
	}
}

// wait blocks on a registered waiter, bounded by the session timeout.
func (c *Console) wait(ctx context.Context, waiter chan string) (string, error) {
	select {
	case line := <-waiter:
		return line, nil
	case <-ctx.Done():
	case <-c.closed:
	case <-time.After(c.timeout):
	}
	// Best effort: drop the registration so a late line is not swallowed.
	select {
	case <-c.prompts:
	default:
	}
	return "", dialog.ErrTimedOut
}

func (c *Console) print(lines ...string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(c.out, line)
	}
}

// render flattens a message, embed included, into console lines.
func render(m messaging.Message) []string {
	var lines []string
	if m.Content != "" {
		lines = append(lines, m.Content)
	}
	if e := m.Embed; e != nil {
		if e.Title != "" {
			lines = append(lines, "== "+e.Title+" ==")
		}
		if e.Description != "" {
			lines = append(lines, e.Description)
		}
		for _, f := range e.Fields {
			lines = append(lines, f.Name+": "+f.Value)
		}
		if e.LinkURL != "" {
			lines = append(lines, e.LinkURL)
		}
		if e.Footer != "" {
			lines = append(lines, "("+e.Footer+")")
		}
	}
	return lines
}

func (c *Console) Broadcast(_ context.Context, channelIDs []string, m messaging.Message) {
	for _, line := range render(m) {
		c.print("[" + strings.Join(channelIDs, ",") + "] " + line)
	}
}

func (c *Console) Respond(_ context.Context, origin models.Origin, m messaging.Message) {
	for _, line := range render(m) {
		c.print("@" + origin.User.Username + " " + line)
	}
}

// PresentChoices prints numbered options and reads the pick, by number or id.
func (c *Console) PresentChoices(ctx context.Context, user models.User, prompt string, choices []dialog.Choice) (dialog.Choice, error) {
	waiter, ok := c.register()
	if !ok {
		return dialog.Choice{}, dialog.ErrTimedOut
	}
	lines := []string{"@" + user.Username + " " + prompt}
	for i, ch := range choices {
		lines = append(lines, fmt.Sprintf("  %d) %s", i+1, ch.Label))
	}
	c.print(lines...)

	reply, err := c.wait(ctx, waiter)
	if err != nil {
		return dialog.Choice{}, err
	}
	reply = strings.TrimSpace(reply)
	if n, err := strconv.Atoi(reply); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1], nil
	}
	for _, ch := range choices {
		if ch.ID == reply {
			return ch, nil
		}
	}
	return dialog.Choice{}, dialog.ErrTimedOut
}

func (c *Console) AwaitReply(ctx context.Context, user models.User, prompt string) (string, error) {
	waiter, ok := c.register()
	if !ok {
		return "", dialog.ErrTimedOut
	}
	c.print("@" + user.Username + " " + prompt)
	return c.wait(ctx, waiter)
}
