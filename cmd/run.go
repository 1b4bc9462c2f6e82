package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/prepwise/intervu/internal/completion"
	"github.com/prepwise/intervu/internal/completion/gemini"
	"github.com/prepwise/intervu/internal/engine"
	"github.com/prepwise/intervu/internal/interview"
	"github.com/prepwise/intervu/internal/logger"
	"github.com/prepwise/intervu/internal/progress"
	"github.com/prepwise/intervu/internal/secrets"
	"github.com/prepwise/intervu/internal/speech"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes          = "Yes"
	PromptNo           = "No"
	PromptSubmit       = "Submit answer"
	PromptStartCapture = "Start capture now"
	PromptStopCapture  = "Stop capture"
	PromptQuit         = "Quit"

	PromptModeTechnical  = "Technical"
	PromptModeBehavioral = "Behavioral"
	PromptNoDomain       = "No specific domain"

	defaultGenerationTimeout = 30 * time.Second
	defaultGraceDelay        = 500 * time.Millisecond
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a voice-driven mock interview",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("mode", "m", "", "interview mode: technical or behavioral")
	runCmd.Flags().String("domain", "", "technical domain emphasis (frontend, backend, fullstack, datascience, devops, mobile)")
	runCmd.Flags().StringP("resume-file", "r", "", "resume text file used to personalize technical questions")

	viper.BindPFlag("mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("domain", runCmd.Flags().Lookup("domain"))
	viper.BindPFlag("resume-file", runCmd.Flags().Lookup("resume-file"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting intervu", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	// Speech capture availability is the one hard, user-facing failure.
	// Check it before any session exists.
	if config.Speech == nil || config.Speech.CaptureCommand == "" {
		logger.Fatal("speech capture is not configured",
			zap.String("hint", "set speech.capture-command in the configuration file"),
		)
	}

	if err := speech.Detect(config.Speech.CaptureCommand); err != nil {
		logger.Fatal("this system cannot record spoken answers, the interview cannot start",
			zap.Error(err),
		)
	}

	session, err := newSession(config)
	if err != nil {
		logger.Fatal("creating a session", zap.Error(err))
	}

	logger.Info("session created",
		zap.String(loggerFieldSession, session.ID),
		zap.String("mode", string(session.Mode)),
		zap.String("domain", string(session.Domain)),
	)

	maxLogLen := 0
	if config.Completion != nil {
		maxLogLen = config.Completion.MaxLogLength
	}

	service, err := newCompletionService(ctx, config.Completion, session.ID, logger)
	if err != nil {
		logger.Warn("completion service unavailable, offline fallbacks will be used", zap.Error(err))
		service = nil
	}

	generator := interview.NewGenerator(service, interview.NewPromptBuilder(nil), logger, maxLogLen)

	genCtx, cancel := context.WithTimeout(ctx, generationTimeout(config.Completion))
	err = generator.Generate(genCtx, session)
	cancel()
	if err != nil {
		logger.Fatal("assigning questions", zap.Error(err))
	}

	logger.Info("questions ready", zap.Int("count", len(session.Questions())))

	startPrompt := promptui.Select{
		Label: "Start the interview? The first question will be read aloud",
		Items: []string{PromptYes, PromptNo},
	}

	_, confirmed, err := startPrompt.Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	if confirmed != PromptYes {
		logger.Info("exiting", zap.String("reason", "interview not confirmed"))
		return
	}

	if err := conduct(ctx, config, session, logger); err != nil {
		logger.Fatal("running the interview", zap.Error(err))
	}

	synthesizer := interview.NewSynthesizer(service, logger, maxLogLen)
	report, err := synthesizer.Evaluate(ctx, session)
	if err != nil {
		logger.Fatal("synthesizing feedback", zap.Error(err))
	}

	fmt.Printf("\n%s\n\n", report)

	if config.Progress != nil {
		progress.New(config.Progress.URL, logger).InterviewComplete(ctx, session.ID)
	}

	logger.Info("interview complete", zap.String(loggerFieldSession, session.ID))
}

const loggerFieldSession = logger.FieldSession

// conduct drives the turn engine from terminal actions until every question
// is answered.
func conduct(ctx context.Context, config *Config, session *interview.Session, logger *zap.Logger) error {
	narrator := speech.NewCommandNarrator(config.Speech.NarrateCommand, config.Speech.NarrateArgs, logger)
	transcriber := speech.NewCommandTranscriber(config.Speech.CaptureCommand, config.Speech.CaptureArgs, logger)

	grace := config.Speech.GraceDelay
	if grace <= 0 {
		grace = defaultGraceDelay
	}

	hooks := engine.Hooks{
		OnQuestion: func(index int, text string) {
			fmt.Printf("\nQuestion %d of %d: %s\n", index+1, interview.QuestionCount, text)
		},
		OnCountdownTick: func(remaining int) {
			if remaining > 0 {
				fmt.Printf("Recording in %d...\n", remaining)
			}
		},
		OnListening: func() {
			fmt.Println("Listening. Answer out loud, then submit.")
		},
	}

	eng := engine.New(ctx, session, narrator, transcriber, engine.Config{
		CountdownStart: config.Speech.CountdownSeconds,
		GraceDelay:     grace,
		Language:       config.Speech.Language,
	}, hooks, logger)

	if err := eng.Start(); err != nil {
		return err
	}

	turnPrompt := promptui.Select{
		Label: "Turn actions",
		Items: []string{PromptSubmit, PromptStartCapture, PromptStopCapture, PromptQuit},
	}

	for {
		_, action, err := turnPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptSubmit:
			if err := eng.Submit(); err != nil {
				logger.Warn("submit ignored", zap.Error(err))
				continue
			}

			for eng.State() == engine.StateCaptured {
				time.Sleep(50 * time.Millisecond)
			}

			if eng.State() == engine.StateFinished {
				return nil
			}
		case PromptStartCapture:
			eng.StartCapture()
		case PromptStopCapture:
			eng.StopCapture()

			for eng.State() == engine.StateCaptured {
				time.Sleep(50 * time.Millisecond)
			}

			if eng.State() == engine.StateFinished {
				return nil
			}
		case PromptQuit:
			return fmt.Errorf("interview aborted")
		}
	}
}

// newSession resolves mode, domain and resume context from config, flags or
// interactive prompts and creates the session aggregate.
func newSession(config *Config) (*interview.Session, error) {
	mode, err := resolveMode(config)
	if err != nil {
		return nil, err
	}

	resumeContext := ""
	domain := interview.Domain("")

	if mode == interview.ModeTechnical {
		resumeFile := strings.TrimSpace(viper.GetString("resume-file"))
		if resumeFile == "" && config.ResumeFile != "" {
			resumeFile = config.ResumeFile
		}

		if resumeFile != "" {
			data, err := os.ReadFile(resumeFile)
			if err != nil {
				return nil, fmt.Errorf("reading resume file: %w", err)
			}
			resumeContext = string(data)
		} else {
			domain, err = resolveDomain(config)
			if err != nil {
				return nil, err
			}
		}
	}

	return interview.NewSession(mode, domain, resumeContext)
}

func resolveMode(config *Config) (interview.Mode, error) {
	value := strings.TrimSpace(viper.GetString("mode"))
	if value == "" {
		value = config.Mode
	}

	if value != "" {
		return interview.ParseMode(value)
	}

	modePrompt := promptui.Select{
		Label: "Choose the interview mode",
		Items: []string{PromptModeTechnical, PromptModeBehavioral},
	}

	_, selected, err := modePrompt.Run()
	if err != nil {
		return "", err
	}

	return interview.ParseMode(selected)
}

func resolveDomain(config *Config) (interview.Domain, error) {
	value := strings.TrimSpace(viper.GetString("domain"))
	if value == "" {
		value = config.Domain
	}

	if value != "" {
		return interview.ParseDomain(value)
	}

	domainPrompt := promptui.Select{
		Label: "Choose a domain emphasis",
		Items: []string{
			PromptNoDomain,
			string(interview.DomainFrontend),
			string(interview.DomainBackend),
			string(interview.DomainFullStack),
			string(interview.DomainDataScience),
			string(interview.DomainDevOps),
			string(interview.DomainMobile),
		},
	}

	_, selected, err := domainPrompt.Run()
	if err != nil {
		return "", err
	}

	if selected == PromptNoDomain {
		return "", nil
	}

	return interview.ParseDomain(selected)
}

// newCompletionService builds the configured completion provider. A nil
// config or any construction error means offline mode: the question bank and
// heuristic feedback take over.
func newCompletionService(ctx context.Context, cfg *CompletionConfig, sessionID string, log *zap.Logger) (completion.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("completion is not configured")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", "api":
		if cfg.API == nil || strings.TrimSpace(cfg.API.URL) == "" {
			return nil, fmt.Errorf("completion.api.url is required for the api provider")
		}

		var token string
		tokenFile := cfg.API.TokenFile
		if tokenFile == "" {
			tokenFile = viper.GetString("token-file")
		}
		if tokenFile != "" {
			loaded, err := secrets.Load(secrets.Source{
				Name: "completion api token",
				File: tokenFile,
			})
			if err != nil {
				return nil, err
			}
			token = loaded
		}

		service := completion.NewHTTPService(cfg.API.URL, token, cfg.Timeout, logger.WithCommonFields(log, "api", ""))
		service.SessionID = sessionID
		return service, nil
	case "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini configuration is required for the gemini provider")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: geminiKeyFile(cfg.Gemini),
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set completion.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		return gemini.NewClient(ctx, apiKey, cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}
}

func geminiKeyFile(cfg *GeminiConfig) string {
	if file := strings.TrimSpace(cfg.APIKeyFile); file != "" {
		return file
	}
	return strings.TrimSpace(viper.GetString("gemini-api-key-file"))
}

func generationTimeout(cfg *CompletionConfig) time.Duration {
	if cfg != nil && cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return defaultGenerationTimeout
}
