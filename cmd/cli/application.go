package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tyemirov/patchpatch/cmd/cli/rewrite"
	"github.com/tyemirov/patchpatch/internal/utils"
	"github.com/tyemirov/patchpatch/internal/version"
)

const (
	applicationNameConstant                            = "patchpatch"
	applicationShortDescriptionConstant                = "Rewrite git history by replacing a string in every commit"
	applicationLongDescriptionConstant                 = "patchpatch replays the history of a branch as patches, rewriting a string in file contents and file names, and commits the rewritten patches onto a new branch."
	configFileFlagNameConstant                         = "config"
	configFileFlagUsageConstant                        = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                           = "log-level"
	logLevelFlagUsageConstant                          = "Override the configured log level."
	logFormatFlagNameConstant                          = "log-format"
	logFormatFlagUsageConstant                         = "Override the configured log format (structured or console)."
	commonLogLevelConfigKeyConstant                    = "common.log_level"
	commonLogFormatConfigKeyConstant                   = "common.log_format"
	environmentPrefixConstant                          = "PATCHPATCH"
	environmentFileNameConstant                        = ".env"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	configurationInitializedMessageConstant            = "configuration initialized"
	configurationInitializedConsoleTemplateConstant    = "%s | log level=%s | log format=%s | config file=%s"
	configurationLogLevelFieldConstant                 = "log_level"
	configurationLogFormatFieldConstant                = "log_format"
	configurationFileFieldConstant                     = "config_file"
	xdgConfigHomeEnvironmentVariableConstant           = "XDG_CONFIG_HOME"
	configurationSearchPathEnvironmentVariableConstant = "PATCHPATCH_CONFIG_SEARCH_PATH"
	defaultConfigurationSearchPathConstant             = "."
	userConfigurationDirectoryNameConstant             = ".patchpatch"
	xdgConfigurationDirectoryNameConstant              = "patchpatch"
	environmentFileErrorTemplateConstant               = "unable to load %s: %w"
	configurationLoadErrorTemplateConstant             = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                    = "unable to flush logger: %w"
	rewriteCommandBuildErrorTemplateConstant           = "unable to build rewrite command: %w"
	versionCommandUseNameConstant                      = "version"
	versionCommandShortDescriptionConstant             = "Print the patchpatch version"
	versionOutputTemplateConstant                      = "patchpatch version: %s\n"
)

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         loggerOutputsFactory
	logger                *zap.Logger
	consoleLogger         *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfigurationMetadata
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	versionResolver       func() string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory: utils.NewLoggerFactory(),
		logger:        zap.NewNop(),
		consoleLogger: zap.NewNop(),
	}
	application.versionResolver = application.resolveVersion

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		application.resolveConfigurationSearchPaths(),
	)
	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	rewriteBuilder := rewrite.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() rewrite.CommandConfiguration {
			return application.configuration.Rewrite
		},
	}
	if rewriteCommand, buildError := rewriteBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(rewriteCommand)
	} else {
		cobraCommand.RunE = func(*cobra.Command, []string) error {
			return fmt.Errorf(rewriteCommandBuildErrorTemplateConstant, buildError)
		}
	}

	cobraCommand.AddCommand(&cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			_, writeError := fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, application.versionResolver())
			return writeError
		},
	})

	application.rootCommand = cobraCommand
	return application
}

// Run executes the command hierarchy with the provided arguments and flushes the loggers.
func (application *Application) Run(arguments []string) error {
	if environmentError := loadEnvironmentFile(); environmentError != nil {
		return environmentError
	}

	application.rootCommand.SetArgs(arguments)
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute runs the command hierarchy with the process arguments.
func (application *Application) Execute() error {
	return application.Run(os.Args[1:])
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// RootCommand exposes the root command for output redirection.
func (application *Application) RootCommand() *cobra.Command {
	return application.rootCommand
}

// InitializeForCommand prepares application state for the provided command name without executing command logic.
func (application *Application) InitializeForCommand(commandUse string) error {
	command := &cobra.Command{Use: commandUse}
	return application.initializeConfiguration(command)
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

// Configuration returns the configuration resolved during initialization.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

func loadEnvironmentFile() error {
	loadError := godotenv.Load(environmentFileNameConstant)
	if loadError == nil {
		return nil
	}
	var pathError *os.PathError
	if errors.As(loadError, &pathError) {
		return nil
	}
	return fmt.Errorf(environmentFileErrorTemplateConstant, environmentFileNameConstant, loadError)
}

func (application *Application) resolveConfigurationSearchPaths() []string {
	overrideValue := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentVariableConstant))
	if len(overrideValue) > 0 {
		overridePaths := make([]string, 0)
		for _, candidate := range filepath.SplitList(overrideValue) {
			if trimmedCandidate := strings.TrimSpace(candidate); len(trimmedCandidate) > 0 {
				overridePaths = append(overridePaths, trimmedCandidate)
			}
		}
		if len(overridePaths) > 0 {
			return overridePaths
		}
	}

	searchPaths := []string{defaultConfigurationSearchPathConstant}
	appendUnique := func(candidate string) {
		for _, existing := range searchPaths {
			if existing == candidate {
				return
			}
		}
		searchPaths = append(searchPaths, candidate)
	}

	if xdgConfigHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant)); len(xdgConfigHome) > 0 {
		appendUnique(filepath.Join(xdgConfigHome, xdgConfigurationDirectoryNameConstant))
	}
	if userConfigDirectory, userConfigError := os.UserConfigDir(); userConfigError == nil {
		appendUnique(filepath.Join(userConfigDirectory, xdgConfigurationDirectoryNameConstant))
	}
	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil {
		appendUnique(filepath.Join(homeDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelError),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogLevel))),
		utils.LogFormat(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogFormat))),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}
	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()
	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogFormat), string(utils.LogFormatConsole))
}

func (application *Application) logConfigurationInitialization() {
	if application.humanReadableLoggingEnabled() {
		application.consoleLogger.Debug(fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
		))
		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
}

func (application *Application) resolveVersion() string {
	return version.Detect(version.Dependencies{})
}

func (application *Application) flushLogger() error {
	for _, logger := range []*zap.Logger{application.logger, application.consoleLogger} {
		if syncError := syncLoggerInstance(logger); syncError != nil {
			return syncError
		}
	}
	return nil
}

func syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP), errors.Is(syncError, syscall.EINVAL), errors.Is(syncError, syscall.EBADF), errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSets := []*pflag.FlagSet{command.PersistentFlags(), command.InheritedFlags()}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSets = append(flagSets, rootCommand.PersistentFlags())
	}
	for _, flagSet := range flagSets {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
