package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Inspect or seed the question bank",
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the questions in the order they are asked",
	Run: func(_ *cobra.Command, _ []string) {
		listQuestions()
	},
}

var questionsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the stored question bank",
	Long: "Replace the stored question bank with the questions from --file, the " +
		"questions config key, or the built-in defaults, in that order.",
	Run: func(cmd *cobra.Command, _ []string) {
		seedQuestions(cmd)
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
	questionsCmd.AddCommand(questionsListCmd, questionsSeedCmd)

	questionsSeedCmd.Flags().String("file", "", "a yaml file with a list of questions")
}

func listQuestions() {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	logger := newLogger("stderr")
	config := mustConfig(logger)

	var bank storage.QuestionBank
	if remoteMode(config) {
		client, err := newAPIClient(config.Client, logger)
		if err != nil {
			logger.Fatal("creating the api client", zap.Error(err))
		}
		bank = client
	} else {
		be, err := openBackend(ctx, config.Storage, config.Questions)
		if err != nil {
			logger.Fatal("opening storage", zap.Error(err))
		}
		defer be.close()
		bank = be.questions
	}

	questions, err := bank.Questions(ctx)
	if err != nil {
		logger.Fatal("getting questions", zap.Error(err))
	}
	for i, q := range questions {
		fmt.Printf("%d. %s\n", i+1, q.Text)
	}
}

func seedQuestions(cmd *cobra.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	logger := newLogger()
	config := mustConfig(logger)

	texts := []string(staticQuestions(config.Questions))
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		var err error
		if texts, err = readQuestionList(path); err != nil {
			logger.Fatal("reading questions", zap.Error(err), zap.String("file", path))
		}
	}

	be, err := openBackend(ctx, config.Storage, config.Questions)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer be.close()

	if be.seeder == nil {
		logger.Fatal("storage backend keeps no question bank",
			zap.String("backend", be.name),
			zap.String("hint", "set the questions config key instead"),
		)
	}

	if err := be.seeder.Seed(ctx, texts); err != nil {
		logger.Fatal("seeding questions", zap.Error(err))
	}
	logger.Info("seeded questions", zap.Int("count", len(texts)), zap.String("backend", be.name))
}

// readQuestionList accepts a bare yaml list of strings, or a mapping with a
// questions key holding strings or {id, text} entries.
func readQuestionList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var plain struct {
		Questions []string `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &plain); err == nil && len(plain.Questions) > 0 {
		return plain.Questions, nil
	}

	var bank struct {
		Questions []transcript.Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, q := range bank.Questions {
		list = append(list, q.Text)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%s holds no questions", path)
	}
	return list, nil
}
