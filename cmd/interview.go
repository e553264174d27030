package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/interview-coach/internal/interview"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var errQuit = errors.New("interview abandoned")

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run an interview in the terminal",
	Long: "Run an interview in the terminal. Answers are evaluated by the configured " +
		"evaluator and the transcript is saved to the configured storage, or, with " +
		"client.api-url set, everything goes through a running service. " +
		"Ctrl+C while an answer is being evaluated cancels the evaluation.",
	Run: func(_ *cobra.Command, _ []string) {
		runInterview()
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)
}

func runInterview() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	// stdout carries the dialogue.
	logger := newLogger("stderr")
	config := mustConfig(logger)

	ctrl, closeFn, err := newTerminalController(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the interview", zap.Error(err))
	}
	defer closeFn()
	defer ctrl.Close()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for {
			select {
			case <-interrupts:
				ctrl.Cancel()
			case <-ctx.Done():
				return
			}
		}
	}()

	err = converse(ctx, ctrl, newLineReader(os.Stdin, os.Stdout))
	switch {
	case err == nil:
		s := ctrl.Snapshot()
		logger.Debug("interview finished", zap.Bool("saved", s.Saved), zap.String("transcript_id", s.TranscriptID))
	case errors.Is(err, errQuit):
		logger.Info("exiting", zap.String("reason", "interview abandoned"))
	default:
		logger.Fatal("interview failed", zap.Error(err))
	}
}

func newTerminalController(ctx context.Context, config *Config, logger *zap.Logger) (*interview.Controller, func(), error) {
	revealInterval := config.Interview.RevealInterval
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		revealInterval = 0
	}

	opts := []interview.Option{
		interview.WithLogger(logger),
		interview.WithTimeouts(interviewTimeouts(config.Interview)),
		interview.WithRevealInterval(revealInterval),
		interview.WithUserID(config.Client.UserID),
		interview.WithDisplay(newTypewriter(os.Stdout)),
	}

	if remoteMode(config) {
		client, err := newAPIClient(config.Client, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using the remote service", zap.String("api_url", config.Client.APIURL))
		return interview.New(client, client, client, opts...), func() {}, nil
	}

	be, err := openBackend(ctx, config.Storage, config.Questions)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	evaluator, err := newEvaluator(ctx, config.Evaluator, logger)
	if err != nil {
		be.close()
		return nil, nil, fmt.Errorf("building the evaluator: %w", err)
	}
	return interview.New(be.questions, evaluator, be.store, opts...), be.close, nil
}

// converse feeds input lines to the controller until the interview completes.
func converse(ctx context.Context, ctrl *interview.Controller, read func() (string, error)) error {
	if _, err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start interview: %w", err)
	}

	for {
		if ctrl.Snapshot().Phase == interview.PhaseComplete {
			return nil
		}

		text, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) {
				return errQuit
			}
			return fmt.Errorf("read answer: %w", err)
		}

		_, err = ctrl.Submit(ctx, text)
		switch {
		case err == nil, errors.Is(err, interview.ErrEmptyInput):
		case errors.Is(err, interview.ErrComplete):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}
	}
}

// newLineReader reads answers with a prompt on a terminal and plain lines
// otherwise.
func newLineReader(in *os.File, out io.Writer) func() (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		return func() (string, error) {
			prompt := promptui.Prompt{Label: "You"}
			return prompt.Run()
		}
	}
	return scanLines(in, out)
}

func scanLines(in io.Reader, out io.Writer) func() (string, error) {
	scanner := bufio.NewScanner(in)
	return func() (string, error) {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
}

// typewriter prints only the part of a system line not printed yet, so the
// prefixes produced by the controller come out as a typing effect.
type typewriter struct {
	mu      sync.Mutex
	w       io.Writer
	index   int
	printed int
}

func newTypewriter(w io.Writer) *typewriter {
	return &typewriter{w: w, index: -1}
}

func (t *typewriter) Show(f interview.Frame) {
	if f.Speaker != interview.SpeakerSystem {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if f.Index != t.index {
		t.index = f.Index
		t.printed = 0
	}

	runes := []rune(f.Text)
	if len(runes) > t.printed {
		fmt.Fprint(t.w, string(runes[t.printed:]))
		t.printed = len(runes)
	}
	if f.Done {
		fmt.Fprintln(t.w)
	}
}
