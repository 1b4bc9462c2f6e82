package cmd

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "intervu"
)

type Config struct {
	Mode       string            `mapstructure:"mode"`
	Domain     string            `mapstructure:"domain"`
	ResumeFile string            `mapstructure:"resume-file"`
	Completion *CompletionConfig `mapstructure:"completion"`
	Speech     *SpeechConfig     `mapstructure:"speech"`
	Progress   *ProgressConfig   `mapstructure:"progress"`
}

type CompletionConfig struct {
	Provider     string        `mapstructure:"provider"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	API          *APIConfig    `mapstructure:"api"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type APIConfig struct {
	URL       string `mapstructure:"url"`
	TokenFile string `mapstructure:"token-file"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type SpeechConfig struct {
	Language         string        `mapstructure:"language"`
	NarrateCommand   string        `mapstructure:"narrate-command"`
	NarrateArgs      []string      `mapstructure:"narrate-args"`
	CaptureCommand   string        `mapstructure:"capture-command"`
	CaptureArgs      []string      `mapstructure:"capture-args"`
	CountdownSeconds int           `mapstructure:"countdown-seconds"`
	GraceDelay       time.Duration `mapstructure:"grace-delay"`
}

type ProgressConfig struct {
	URL string `mapstructure:"url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "intervu is a voice-driven mock interview coach for the terminal",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Local .env files may carry the token and key file locations.
	_ = godotenv.Load()

	if err := viper.BindEnv("token-file", "INTERVU_TOKEN_FILE"); err != nil {
		log.Fatalf("binding INTERVU_TOKEN_FILE environment variable: %v", err)
	}

	if err := viper.BindEnv("gemini-api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is intervu.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
