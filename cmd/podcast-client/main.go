package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/podcast"
	"github.com/book-expert/podcast-service/internal/speech"
	"github.com/book-expert/podcast-service/internal/storage"
	"github.com/joho/godotenv"
)

// Flag descriptions and messages.
const (
	flagDocumentDesc   = "Document to turn into a podcast (.pdf, .html, .txt, .md)"
	flagLanguageDesc   = "Language code of the dialogue (en, hi, es, fr, de)"
	flagOutputDesc     = "Output directory for the podcast (overrides paths.output_dir)"
	flagConfigDesc     = "Path to a TOML configuration file"
	flagScriptOnlyDesc = "Print the generated script as JSON and skip audio"
	flagVerboseDesc    = "Enable verbose logging"
	flagHealthDesc     = "Check the speech provider health and exit"
)

// Flag names.
const (
	flagDocument   = "document"
	flagLanguage   = "language"
	flagOutput     = "output"
	flagConfig     = "config"
	flagScriptOnly = "script-only"
	flagVerbose    = "verbose"
	flagHealth     = "health"
)

// Error and log messages.
const (
	errFailedToLoadConfig = "failed to load configuration: %w"
	errFailedToInitLogger = "failed to initialize logger: %w"
	errHealthCheckFailed  = "Health check failed: %v"
	errServiceNotHealthy  = "Speech provider is not healthy: %v\n"
	msgServiceHealthy     = "Speech provider is healthy"
	errDocumentRequired   = "--document must be provided"
	errScriptOnlyHealth   = "cannot combine --health with --script-only"
	errFailedToRun        = "Failed to build podcast: %v"
)

// Log and output messages.
const (
	logClientInitialized = "Podcast client initialized (speech provider: %s)"
	logGenerated         = "Generated: %s (%s, %d of %d turns, %d dropped)\n"
	logDroppedTurn       = "  dropped turn %d (%s): %v\n"
)

// File names.
const (
	logFileNameDefault = "podcast-client.log"
	logFileNameVerbose = "podcast-client-verbose.log"
)

const healthTimeout = 10 * time.Second

var (
	errMissingDocument = errors.New(errDocumentRequired)
	errConflictingMode = errors.New(errScriptOnlyHealth)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	document   string
	language   string
	output     string
	config     string
	scriptOnly bool
	verbose    bool
	health     bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = flags.validate()
	if err != nil {
		return err
	}

	envErr := godotenv.Load()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", envErr)
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	clientLog, err := setupLogger(cfg, flags.verbose)
	if err != nil {
		return err
	}
	defer clientLog.Close()

	stack, err := podcast.Build(cfg, clientLog)
	if err != nil {
		return err
	}

	clientLog.Info(logClientInitialized, cfg.Speech.Provider)

	if flags.health {
		return handleHealthCheck(stack, clientLog, stdout)
	}

	ctx := context.Background()

	if flags.scriptOnly {
		return printScript(ctx, stack.Service, flags, stdout)
	}

	outcome, err := stack.Service.Run(ctx, flags.document, flags.language)
	if err != nil {
		clientLog.Error(errFailedToRun, err)

		return err
	}

	printOutcome(outcome, stdout)

	return nil
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("podcast-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.document, flagDocument, "", flagDocumentDesc)
	flagSet.StringVar(&flags.language, flagLanguage, "en", flagLanguageDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.BoolVar(&flags.scriptOnly, flagScriptOnly, false, flagScriptOnlyDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flagSet.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, err
	}

	return flags, nil
}

func (f appFlags) validate() error {
	if f.health && f.scriptOnly {
		return errConflictingMode
	}

	if !f.health && f.document == "" {
		return errMissingDocument
	}

	return nil
}

// loadConfig reads --config when given, otherwise starts from defaults.
func loadConfig(flags appFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if flags.config != "" {
		cfg, err = config.LoadFile(flags.config)
		if err != nil {
			return nil, fmt.Errorf(errFailedToLoadConfig, err)
		}
	} else {
		cfg = config.Default()
		cfg.ApplyEnvironment(os.LookupEnv)
	}

	if flags.output != "" {
		cfg.Paths.OutputDir = flags.output
	}

	return cfg, nil
}

func setupLogger(cfg *config.Config, verbose bool) (*logger.Logger, error) {
	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	clientLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	return clientLog, nil
}

// handleHealthCheck performs a provider health check and prints the result.
func handleHealthCheck(stack *podcast.Stack, clientLog *logger.Logger, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	err := speech.HealthCheck(ctx, stack.Synthesizer)
	if err != nil {
		clientLog.Error(errHealthCheckFailed, err)
		fmt.Fprintf(stdout, errServiceNotHealthy, err)

		return err
	}

	fmt.Fprintln(stdout, msgServiceHealthy)

	return nil
}

func printScript(ctx context.Context, service *podcast.Service, flags appFlags, stdout io.Writer) error {
	script, err := service.ScriptFromFile(ctx, flags.document, flags.language)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(script)
}

func printOutcome(outcome *podcast.Outcome, stdout io.Writer) {
	result := outcome.Audio

	fmt.Fprintf(stdout, logGenerated, result.Path, storage.FormatDuration(result.Duration.Seconds()),
		result.TurnsIncluded, result.TurnsTotal, len(result.Dropped))

	for _, failure := range result.Dropped {
		fmt.Fprintf(stdout, logDroppedTurn, failure.Index, failure.Speaker, failure.Err)
	}
}
