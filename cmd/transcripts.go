package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/interview-coach/internal/apiclient"
	"github.com/spigell/interview-coach/internal/report"
	"github.com/spigell/interview-coach/internal/transcript"
	"go.uber.org/zap"
)

const (
	PromptQuit = "quit"

	adminTimeout = 30 * time.Second
)

// transcriptSource is where the admin commands read transcripts from.
type transcriptSource interface {
	List(ctx context.Context) ([]*transcript.Transcript, error)
	Get(ctx context.Context, id string) (*transcript.Transcript, error)
}

type remoteTranscripts struct {
	client *apiclient.Client
}

func (r remoteTranscripts) List(ctx context.Context) ([]*transcript.Transcript, error) {
	return r.client.ListTranscripts(ctx)
}

func (r remoteTranscripts) Get(ctx context.Context, id string) (*transcript.Transcript, error) {
	return r.client.GetTranscript(ctx, id)
}

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "Review saved interview transcripts",
}

var transcriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transcripts, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		listTranscripts(cmd)
	},
}

var transcriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showTranscript(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(transcriptsCmd)
	transcriptsCmd.AddCommand(transcriptsListCmd, transcriptsShowCmd)

	transcriptsListCmd.Flags().BoolP("interactive", "i", false, "pick a transcript to open from the list")
	for _, c := range []*cobra.Command{transcriptsListCmd, transcriptsShowCmd} {
		c.Flags().StringP("format", "f", report.FormatMarkdown, "output format of a transcript: json, markdown or html")
	}
}

func openTranscriptSource(ctx context.Context, config *Config, logger *zap.Logger) (transcriptSource, func(), error) {
	if remoteMode(config) {
		client, err := newAPIClient(config.Client, logger)
		if err != nil {
			return nil, nil, err
		}
		return remoteTranscripts{client: client}, func() {}, nil
	}

	be, err := openBackend(ctx, config.Storage, config.Questions)
	if err != nil {
		return nil, nil, err
	}
	return be.store, be.close, nil
}

func listTranscripts(cmd *cobra.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	logger := newLogger("stderr")
	config := mustConfig(logger)

	source, closeFn, err := openTranscriptSource(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening transcripts", zap.Error(err))
	}
	defer closeFn()

	items, err := source.List(ctx)
	if err != nil {
		logger.Fatal("listing transcripts", zap.Error(err))
	}
	logger.Debug("listed transcripts", zap.Int("count", len(items)))

	if interactive, _ := cmd.Flags().GetBool("interactive"); !interactive {
		if err := report.Table(os.Stdout, items); err != nil {
			logger.Fatal("printing transcripts", zap.Error(err))
		}
		return
	}

	format, _ := cmd.Flags().GetString("format")
	if err := browseTranscripts(items, format, os.Stdout); err != nil {
		logger.Fatal("browsing transcripts", zap.Error(err))
	}
}

// browseTranscripts lets the user open transcripts one by one until quit.
func browseTranscripts(items []*transcript.Transcript, format string, w io.Writer) error {
	labels := make([]string, 0, len(items)+1)
	for _, tr := range items {
		labels = append(labels, fmt.Sprintf("%s  %s / %s  (%d answers)",
			tr.CreatedAt.Local().Format("2006-01-02 15:04"), tr.Name, tr.Company, len(tr.Questions)))
	}
	labels = append(labels, PromptQuit)

	for {
		selectPrompt := promptui.Select{
			Label: "Choose a transcript and press ENTER",
			Items: labels,
			Size:  10,
		}

		idx, _, err := selectPrompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
				return nil
			}
			return err
		}
		if idx == len(items) {
			return nil
		}

		if err := renderTranscript(w, items[idx], format); err != nil {
			return err
		}
	}
}

func showTranscript(cmd *cobra.Command, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	logger := newLogger("stderr")
	config := mustConfig(logger)

	source, closeFn, err := openTranscriptSource(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening transcripts", zap.Error(err))
	}
	defer closeFn()

	tr, err := source.Get(ctx, id)
	if err != nil {
		logger.Fatal("getting the transcript", zap.Error(err), zap.String("transcript_id", id))
	}

	format, _ := cmd.Flags().GetString("format")
	if err := renderTranscript(os.Stdout, tr, format); err != nil {
		logger.Fatal("printing the transcript", zap.Error(err))
	}
}

func renderTranscript(w io.Writer, tr *transcript.Transcript, format string) error {
	switch format {
	case report.FormatJSON:
		pretty, err := json.MarshalIndent(tr, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(pretty))
		return err
	case "", report.FormatMarkdown:
		_, err := io.WriteString(w, report.Markdown(tr))
		return err
	case report.FormatHTML:
		html, err := report.HTML(tr)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
