// internal/command/command.go

// Package command parses chat messages into bot commands and dispatches
// them: the match/room surface, the scoring-service surface, the boss fight
// and a few odds and ends.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/okimu/okimu/internal/challenge"
	"github.com/okimu/okimu/internal/config"
	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/protocol"
	"github.com/okimu/okimu/internal/room"
)

// DefaultPrefix marks a message as a command.
const DefaultPrefix = "!"

// Provider is the slice of the scoring service the command surface reads.
type Provider interface {
	GetLevel(ctx context.Context, uid string) (*cytoid.Level, error)
	GetProfile(ctx context.Context, cytoidID string) (*cytoid.Profile, error)
	GetLeaderboard(ctx context.Context, levelUID, chartType string) ([]cytoid.LeaderboardEntry, error)
	GetMostRecentPlay(ctx context.Context, cytoidID string) (*cytoid.ScoreRecord, error)
	SearchLevels(ctx context.Context, query string) ([]cytoid.LevelSummary, error)
}

// Handler runs one command. args holds everything after the command path.
type Handler func(ctx context.Context, origin models.Origin, args []string)

// Command is one node of the dispatch tree: either a leaf with a Handler or
// a branch with Sub commands.
type Command struct {
	Name string
	Help string
	Run  Handler
	Sub  map[string]*Command
}

// Router owns the command tree and the shared collaborators.
type Router struct {
	prefix    string
	commands  map[string]*Command
	registry  *room.Registry
	flows     *protocol.Flows
	boss      *challenge.Host
	provider  Provider
	store     *config.Store
	messenger messaging.Messenger
	log       *logrus.Logger
}

// Deps wires a Router.
type Deps struct {
	Registry  *room.Registry
	Flows     *protocol.Flows
	Boss      *challenge.Host
	Provider  Provider
	Store     *config.Store
	Messenger messaging.Messenger
	Log       *logrus.Logger
	Prefix    string
}

func NewRouter(deps Deps) *Router {
	if deps.Prefix == "" {
		deps.Prefix = DefaultPrefix
	}
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	r := &Router{
		prefix:    deps.Prefix,
		commands:  make(map[string]*Command),
		registry:  deps.Registry,
		flows:     deps.Flows,
		boss:      deps.Boss,
		provider:  deps.Provider,
		store:     deps.Store,
		messenger: deps.Messenger,
		log:       deps.Log,
	}
	r.register(r.matchCommand())
	r.register(r.ctdCommand())
	r.register(r.challengerCommand())
	r.register(r.tipCommand())
	r.register(r.infoCommand())
	r.register(r.setCommand())
	r.register(r.helpCommand())
	return r
}

func (r *Router) register(c *Command) { r.commands[c.Name] = c }

// Dispatch routes one incoming message. Reports whether it was handled as a
// command. Banned users and banned channels are ignored silently; `set` is
// exempt from the channel ban so an admin can always lift it.
func (r *Router) Dispatch(ctx context.Context, origin models.Origin, content string) bool {
	if !strings.HasPrefix(content, r.prefix) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(content, r.prefix))
	if len(fields) == 0 {
		return false
	}

	if r.store.GetUser(origin.User.ID).Status == config.StatusBanned {
		return true
	}
	if origin.GuildID != "" && fields[0] != "set" {
		if r.store.GetGuild(origin.GuildID).BannedChannels[origin.ChannelID] {
			return true
		}
	}

	cmd, ok := r.commands[fields[0]]
	if !ok {
		r.messenger.Respond(ctx, origin, messaging.Text(
			fmt.Sprintf("Unknown command `%s%s` - try `%shelp`.", r.prefix, fields[0], r.prefix)))
		return true
	}

	args := fields[1:]
	for len(args) > 0 && cmd.Sub != nil {
		sub, ok := cmd.Sub[args[0]]
		if !ok {
			break
		}
		cmd = sub
		args = args[1:]
	}
	if cmd.Run == nil {
		r.messenger.Respond(ctx, origin, messaging.Text(r.usage(cmd)))
		return true
	}

	r.log.WithFields(logrus.Fields{"command": cmd.Name, "user": origin.User.ID}).Debug("command: dispatch")
	cmd.Run(ctx, origin, args)
	return true
}

func (r *Router) usage(c *Command) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage of `%s%s`:\n", r.prefix, c.Name)
	names := make([]string, 0, len(c.Sub))
	for name := range c.Sub {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "- `%s %s` - %s\n", c.Name, name, c.Sub[name].Help)
	}
	return sb.String()
}

func (r *Router) helpCommand() *Command {
	return &Command{
		Name: "help",
		Help: "list every command",
		Run: func(ctx context.Context, origin models.Origin, _ []string) {
			names := make([]string, 0, len(r.commands))
			for name := range r.commands {
				names = append(names, name)
			}
			sort.Strings(names)
			e := &messaging.Embed{Title: "Commands"}
			for _, name := range names {
				e.AddField(r.prefix+name, r.commands[name].Help)
			}
			r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
		},
	}
}

// isAdmin reports whether the user holds an administrative tier.
func (r *Router) isAdmin(userID string) bool {
	status := r.store.GetUser(userID).Status
	return status == config.StatusOwner || status == config.StatusAdministrator
}

func (r *Router) respondText(ctx context.Context, origin models.Origin, format string, args ...interface{}) {
	r.messenger.Respond(ctx, origin, messaging.Text(fmt.Sprintf(format, args...)))
}
