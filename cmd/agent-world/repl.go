package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	agentworld "github.com/yysun/agent-world-sub006"
	"github.com/yysun/agent-world-sub006/events"
	"github.com/yysun/agent-world-sub006/messages"
)

var glam *glamour.TermRenderer

func init() {
	var err error
	glam, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		panic(err)
	}
}

func repl(ctx context.Context, world *agentworld.World, sess *agentworld.ChatSession) error {
	hook, feed := events.NewChannelHook(100)

	convSub, err := sess.Subscribe(events.TopicConversation, hook)
	if err != nil {
		return err
	}
	defer convSub.Unsubscribe()
	streamSub, err := sess.Subscribe(events.TopicStream, hook)
	if err != nil {
		return err
	}
	defer streamSub.Unsubscribe()

	go render(ctx, feed)

	fmt.Printf("world %s with agents: %s\n", color.GreenString(world.ID()), strings.Join(world.ActiveNames(), ", "))
	fmt.Println("say hello, @name someone, or type exit to quit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanLines)
	for {
		fmt.Printf("%s: ", color.CyanString("You"))
		if !scanner.Scan() {
			fmt.Println("Exiting...")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			return nil
		}

		if _, err := sess.Post(ctx, messages.Human("You"), input); err != nil {
			return err
		}
	}
}

// render draws session events to the terminal. Streaming chunks print
// incrementally; a finished reply that never streamed renders as markdown.
func render(ctx context.Context, feed <-chan events.Event) {
	var streamed int
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-feed:
			if !ok {
				return
			}

			switch e := event.(type) {
			case events.StreamStart:
				streamed = 0
				fmt.Printf("\n%s: ", color.MagentaString(e.Agent))
			case events.StreamChunk:
				streamed += len(e.Delta)
				fmt.Print(e.Delta)
			case events.StreamEnd:
				if streamed == 0 {
					out, err := glam.Render(e.Content)
					if err != nil {
						out = e.Content
					}
					fmt.Print(out)
				}
				fmt.Println()
			case events.StreamError:
				fmt.Printf("\n%s: %v\n", color.RedString("error"), e.Err)
			case events.Message:
				if e.Sender.IsSystem() {
					fmt.Printf("\n%s: %s\n", color.YellowString("world"), e.Content)
				}
			}
		}
	}
}
