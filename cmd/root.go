package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "interview-coach"
	envPrefix = "INTERVIEW_COACH"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Questions []string        `mapstructure:"questions"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Interview InterviewConfig `mapstructure:"interview"`
	Client    ClientConfig    `mapstructure:"client"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AdminToken      string        `mapstructure:"admin-token"`
	AdminTokenFile  string        `mapstructure:"admin-token-file"`
	AllowedOrigins  []string      `mapstructure:"allowed-origins"`
	MaxBodyBytes    int64         `mapstructure:"max-body-bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type StorageConfig struct {
	// Backend is one of postgres, file or blob.
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	File     FileConfig     `mapstructure:"file"`
	Blob     BlobConfig     `mapstructure:"blob"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	DSNFile  string `mapstructure:"dsn-file"`
	MaxConns int32  `mapstructure:"max-conns"`
}

type FileConfig struct {
	Dir           string `mapstructure:"dir"`
	QuestionsFile string `mapstructure:"questions-file"`
}

type BlobConfig struct {
	ConnectionString     string `mapstructure:"connection-string"`
	ConnectionStringFile string `mapstructure:"connection-string-file"`
	AccountURL           string `mapstructure:"account-url"`
	Container            string `mapstructure:"container"`
}

type EvaluatorConfig struct {
	// Provider is one of gemini, openai or anyllm.
	Provider     string       `mapstructure:"provider"`
	MaxTokens    int          `mapstructure:"max-tokens"`
	MaxLogLength int          `mapstructure:"max-log-length"`
	Gemini       ModelConfig  `mapstructure:"gemini"`
	OpenAI       ModelConfig  `mapstructure:"openai"`
	AnyLLM       AnyLLMConfig `mapstructure:"anyllm"`
}

type ModelConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type AnyLLMConfig struct {
	ModelConfig `mapstructure:",squash"`
	Provider    string `mapstructure:"provider"`
}

type InterviewConfig struct {
	QuestionsTimeout   time.Duration `mapstructure:"questions-timeout"`
	EvaluationTimeout  time.Duration `mapstructure:"evaluation-timeout"`
	PersistenceTimeout time.Duration `mapstructure:"persistence-timeout"`
	RevealInterval     time.Duration `mapstructure:"reveal-interval"`
}

// ClientConfig points the terminal commands at a running service instead of
// the local storage and evaluator.
type ClientConfig struct {
	APIURL    string `mapstructure:"api-url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	UserID    string `mapstructure:"user-id"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-coach runs short content strategy interviews with AI feedback on every answer",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

var defaults = map[string]any{
	"server.addr":                   ":8080",
	"server.max-body-bytes":         1 << 20,
	"server.shutdown-timeout":       "15s",
	"storage.backend":               "file",
	"storage.postgres.max-conns":    4,
	"storage.file.dir":              "transcripts",
	"storage.blob.container":        "transcripts",
	"evaluator.provider":            "gemini",
	"evaluator.max-tokens":          200,
	"evaluator.max-log-length":      200,
	"interview.questions-timeout":   "10s",
	"interview.evaluation-timeout":  "30s",
	"interview.persistence-timeout": "10s",
	"interview.reveal-interval":     "30ms",
}

// envAliases are the conventional variable names accepted next to the
// prefixed ones.
var envAliases = map[string]string{
	"storage.postgres.dsn":                "DATABASE_URL",
	"storage.blob.connection-string":      "AZURE_STORAGE_CONNECTION_STRING",
	"server.admin-token":                  "INTERVIEW_ADMIN_TOKEN",
	"client.token":                        "INTERVIEW_ADMIN_TOKEN",
	"client.api-url":                      "INTERVIEW_API_URL",
	"evaluator.gemini.api-key":            "GEMINI_API_KEY",
	"evaluator.openai.api-key":            "OPENAI_API_KEY",
	"storage.postgres.dsn-file":           "DATABASE_URL_FILE",
	"evaluator.gemini.api-key-file":       "GEMINI_API_KEY_FILE",
	"evaluator.openai.api-key-file":       "OPENAI_API_KEY_FILE",
	"storage.blob.connection-string-file": "AZURE_STORAGE_CONNECTION_STRING_FILE",
	"server.admin-token-file":             "INTERVIEW_ADMIN_TOKEN_FILE",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-coach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	configureViper(viper.GetViper())
}

// configureViper sets defaults and environment bindings. Every config key is
// also read from INTERVIEW_COACH_<KEY>, dots and dashes replaced by
// underscores.
func configureViper(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, env := range envAliases {
		if err := v.BindEnv(key, envName(key), env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
	for _, key := range []string{
		"client.token-file", "client.user-id",
		"evaluator.gemini.model", "evaluator.openai.model", "evaluator.openai.base-url",
		"evaluator.anyllm.provider", "evaluator.anyllm.model", "evaluator.anyllm.api-key",
		"evaluator.anyllm.api-key-file", "evaluator.anyllm.base-url",
		"storage.file.questions-file", "storage.blob.account-url", "server.allowed-origins",
	} {
		if err := v.BindEnv(key); err != nil {
			log.Fatalf("binding %s environment variable: %v", envName(key), err)
		}
	}
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func initConfig() {
	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults and the environment are enough without a config file, but a
	// file that exists must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	return config, nil
}
