// Command agent-world runs an interactive chat session against a world of
// agents. Type a message to speak to the room, or open with @name to address
// one agent. Agent replies stream to the terminal as they are generated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	agentworld "github.com/yysun/agent-world-sub006"
	"github.com/yysun/agent-world-sub006/broker"
	"github.com/yysun/agent-world-sub006/pkg/natsx"
	"github.com/yysun/agent-world-sub006/pkg/slogx"
	"github.com/yysun/agent-world-sub006/provider/openai"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelWarn}),
	))
}

// agentFlags collects repeated -agent name=instructions definitions.
type agentFlags []agentSpec

type agentSpec struct {
	name         string
	instructions string
}

func (a *agentFlags) String() string {
	names := make([]string, len(*a))
	for i, spec := range *a {
		names[i] = spec.name
	}
	return strings.Join(names, ",")
}

func (a *agentFlags) Set(value string) error {
	name, instructions, _ := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("agent definition %q has no name", value)
	}
	if instructions == "" {
		instructions = fmt.Sprintf("You are %s, a helpful member of a group chat.", name)
	}
	*a = append(*a, agentSpec{name: name, instructions: instructions})
	return nil
}

func main() {
	var (
		worldID   = flag.String("world", "default", "world id")
		model     = flag.String("model", "gpt-4o-mini", "default model for agents")
		turnLimit = flag.Int("turn-limit", 5, "agent turns allowed between human messages")
		natsURL   = flag.String("nats", "", "NATS server url; empty runs in-process")
		agents    agentFlags
	)
	flag.Var(&agents, "agent", "agent definition name=instructions, repeatable")
	flag.Parse()

	if len(agents) == 0 {
		agents = agentFlags{
			{name: "ava", instructions: "You are ava, a curious generalist in a group chat."},
			{name: "bud", instructions: "You are bud, a skeptic who keeps answers short."},
		}
	}

	if err := run(context.Background(), *worldID, *model, *turnLimit, *natsURL, agents); err != nil {
		slog.Error("agent-world failed", slogx.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, worldID, model string, turnLimit int, natsURL string, agents agentFlags) error {
	options := []agentworld.WorldOption{
		agentworld.WithProvider(openai.New()),
		agentworld.WithTurnLimit(turnLimit),
		agentworld.WithDefaultModel(model),
	}

	if natsURL != "" {
		os.Setenv("NATS_URL", natsURL)
		nc, err := natsx.NewClient()
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer nc.Close()
		options = append(options, agentworld.WithBroker(broker.NATS(nc, "world."+worldID)))
	}

	manager := agentworld.NewManager()
	world, err := manager.CreateWorld(worldID, options...)
	if err != nil {
		return err
	}

	for _, spec := range agents {
		if err := world.AddAgent(agentworld.NewAgent(spec.name, agentworld.WithInstructions(spec.instructions))); err != nil {
			return err
		}
	}

	sess := world.CreateSession(ctx)
	defer sess.Close()

	return repl(ctx, world, sess)
}
