package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m1k1o/drmpack"
	"github.com/m1k1o/drmpack/internal/config"
)

// Default configuration path
const defCfgPath = "/etc/drmpack/"

// ENV prefix for configuration
const envPrefix = "DRMPACK"

// Configuration file name, without extension
const cfgName = "drmpack"

// commandSetup is what a subcommand needs once its flags are parsed.
type commandSetup struct {
	configs []config.Config
	// only warnings and errors unless log.level is set
	quiet bool
	// re-read configs when the config file changes
	watch bool
}

var (
	cfgFile string
	logCfg  logConfig
	setups  = map[*cobra.Command]commandSetup{}
)

var rootCmd = &cobra.Command{
	Use:     "drmpack",
	Short:   "DRM packaging CLI.",
	Long:    `Encrypt media with shaka packager and generate playback test assets.`,
	Version: "1.0.0",

	PersistentPreRunE: preflight,

	// errors are logged by the caller
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	if err := logCfg.Init(rootCmd); err != nil {
		log.Panic().Err(err).Msg("unable to register log flags")
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func register(command *cobra.Command, setup commandSetup) {
	for _, cfg := range setup.configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Str("command", command.Name()).Msg("unable to register command")
		}
	}

	setups[command] = setup
	rootCmd.AddCommand(command)
}

func preflight(cmd *cobra.Command, args []string) error {
	if err := initConfiguration(cfgFile); err != nil {
		return err
	}

	setup := setups[cmd]

	logCfg.Set()
	initLogging(logCfg, setup.quiet)
	drmpack.Service.Preflight()

	load := func() {
		for _, cfg := range setup.configs {
			cfg.Set()
		}
	}
	load()

	file := viper.ConfigFileUsed()
	if file == "" {
		log.Debug().Msg("preflight complete without config file")
		return nil
	}

	if setup.watch {
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info().Str("config", e.Name).Msg("config file reloaded")
			load()
		})
		viper.WatchConfig()
	}

	log.Debug().Str("config", file).Bool("watch", setup.watch).Msg("preflight complete with config file")
	return nil
}

//
// Configuration initialization
//

func initConfiguration(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(cfgName)

		if runtime.GOOS != "windows" {
			viper.AddConfigPath(defCfgPath)
		}
		viper.AddConfigPath(".")
	}

	// DRMPACK_KEY_SYSTEM, DRMPACK_PSSH_STRICT, ...
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()

	// a missing file is fine unless it was asked for
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		return fmt.Errorf("read config file: %w", err)
	}

	return nil
}

//
// Logging initialization
//

type logConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       string `mapstructure:"file"`
	MaxAge     int    `mapstructure:"maxage"`     // days
	MaxSize    int    `mapstructure:"maxsize"`    // megabytes
	MaxBackups int    `mapstructure:"maxbackups"` // files
}

func (logConfig) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("log.level", "", "log level, defaults to warn for create and info for serve")
	if err := viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log.level")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("log.console", true, "log to stderr")
	if err := viper.BindPFlag("log.console", cmd.PersistentFlags().Lookup("log.console")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("log.file", "", "also log to this file, rotated on SIGHUP")
	if err := viper.BindPFlag("log.file", cmd.PersistentFlags().Lookup("log.file")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxage", 0, "max age in days to keep a rotated log file")
	if err := viper.BindPFlag("log.maxage", cmd.PersistentFlags().Lookup("log.maxage")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxsize", 100, "max size in MB of the log file before it is rotated")
	if err := viper.BindPFlag("log.maxsize", cmd.PersistentFlags().Lookup("log.maxsize")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxbackups", 0, "max number of rotated log files to keep")
	if err := viper.BindPFlag("log.maxbackups", cmd.PersistentFlags().Lookup("log.maxbackups")); err != nil {
		return err
	}

	return nil
}

func (c *logConfig) Set() {
	var settings struct {
		Log logConfig `mapstructure:"log"`
	}
	if err := viper.Unmarshal(&settings); err != nil {
		log.Panic().Err(err).Msg("unable to unmarshal log config")
	}
	*c = settings.Log
}

// initLogging points the global logger at stderr and/or a rotating file.
// The completion line of create goes to stdout, so logs never mix into it.
func initLogging(config logConfig, quiet bool) {
	var writers []io.Writer

	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		})
	}

	if config.File != "" {
		writers = append(writers, rotatingFile(config))
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(io.MultiWriter(writers...))

	level := zerolog.InfoLevel
	if quiet {
		level = zerolog.WarnLevel
	}

	if config.Level != "" {
		parsed, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			log.Warn().Str("log-level", config.Level).Msg("unknown log level")
		} else {
			level = parsed
		}
	}

	zerolog.SetGlobalLevel(level)

	log.Debug().
		Str("level", level.String()).
		Bool("console", config.Console).
		Str("file", config.File).
		Msg("logging configured")
}

func rotatingFile(config logConfig) *lumberjack.Logger {
	logger := &lumberjack.Logger{
		Filename:   config.File,
		MaxAge:     config.MaxAge,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		for range hup {
			if err := logger.Rotate(); err != nil {
				log.Err(err).Msg("unable to rotate log file")
			}
		}
	}()

	return logger
}
