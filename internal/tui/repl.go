package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/todochat/internal/chat"
	"github.com/ashureev/todochat/internal/domain"
)

// RunPlain runs a line-oriented chat loop reading from in and writing to
// out. It returns nil on /quit, end of input or ctx cancellation.
func RunPlain(ctx context.Context, ctrl Controller, in io.Reader, out io.Writer) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	s := ctrl.State()
	fmt.Fprintf(out, "%s (%s)\n", appTitle, sessionLabel(s))
	fmt.Fprintln(out, "Type a message and press Enter. /help for commands.")
	fmt.Fprintln(out)
	if len(s.Messages) == 0 {
		fmt.Fprintln(out, strings.Join(welcomeLines, "\n"))
		fmt.Fprintln(out)
	}

	for {
		fmt.Fprint(out, "> ")

		var input string
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				return nil
			}
			input = strings.TrimSpace(line)
		}

		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := runCommand(ctx, ctrl, out, input)
			if err != nil {
				fmt.Fprintf(out, "[error] %v\n", err)
			}
			if quit {
				return nil
			}
			fmt.Fprintln(out)
			continue
		}

		if !ctrl.Submit(ctx, input) {
			fmt.Fprintln(out, "[busy] the previous message is still being answered")
			continue
		}
		printOutcome(out, ctrl.State())
		fmt.Fprintln(out)
	}
}

// readLines scans in on its own goroutine so the loop can also watch ctx.
// Once lines is closed the error channel holds the scan result, nil on EOF.
// Closing done stops the goroutine at its next line.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				errs <- nil
				return
			}
		}
		errs <- scanner.Err()
	}()
	return lines, errs
}

func runCommand(ctx context.Context, ctrl Controller, out io.Writer, input string) (quit bool, err error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help":
		printHelp(out)

	case "/new":
		if err := ctrl.StartNewConversation(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "Started a new conversation.")

	case "/history":
		s := ctrl.State()
		items := ctrl.Conversations(ctx)
		fmt.Fprintln(out, historyHeading)
		if len(items) == 0 {
			fmt.Fprintln(out, "  "+emptyHistory)
		}
		for _, item := range items {
			fmt.Fprintln(out, formatSummary(item, s.ActiveConversation))
		}

	case "/use":
		if arg == "" {
			return false, errors.New("usage: /use <conversation id>")
		}
		id := domain.ConversationID(strings.TrimPrefix(arg, "#"))
		if err := ctrl.SelectConversation(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Now using conversation %s\n", id)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func printOutcome(out io.Writer, s chat.State) {
	if s.LastError != "" {
		fmt.Fprintf(out, "Error: %s\n", s.LastError)
		return
	}
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Role == domain.RoleAssistant {
		last := s.Messages[n-1]
		fmt.Fprintf(out, "%s: %s\n", last.Label(), last.Content)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  /new           Start a new conversation")
	fmt.Fprintln(out, "  /history       List recent conversations")
	fmt.Fprintln(out, "  /use <id>      Continue an earlier conversation")
	fmt.Fprintln(out, "  /help          Show this help")
	fmt.Fprintln(out, "  /quit          Exit")
}
