package cmd

import (
	"errors"
	"io"
	"io/fs"
	"io/ioutil"
	"log"
	"os"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/dash/core"
	"github.com/josephlewis42/dash/core/config"
	"github.com/josephlewis42/dash/core/logger"
	"github.com/josephlewis42/dash/core/proc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	cfgPath string
	verbose bool

	// exitCode is the status the process exits with after a shell session.
	exitCode int

	promptColor = color.New(color.FgGreen, color.Bold)
)

func loadConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}

	configuration, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

func diagnosticLogger(cmd *cobra.Command) *log.Logger {
	if !verbose {
		return log.New(ioutil.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "[dash] ", 0)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dash [script]",
	Short: "DAllas SHell",
	Long: `A minimal command line interpreter.

Without arguments dash reads commands interactively, with one argument it
runs each line of the given script. Commands separated by & run in parallel
and > sends a command's output and errors to a file.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		stderr := cmd.ErrOrStderr()

		if len(args) > 1 {
			proc.WriteError(stderr)
			exitCode = 1
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dirs, err := cfg.SearchPath()
		if err != nil {
			return err
		}

		diag := diagnosticLogger(cmd)
		events, closeEvents, err := openEventLog(cfg)
		if err != nil {
			return err
		}
		defer closeEvents.Close()

		opts := core.Options{
			Stdin:  cmd.InOrStdin(),
			Stdout: cmd.OutOrStdout(),
			Stderr: stderr,
			Path:   proc.NewSearchPath(dirs...),
			Events: events.NewSession(),
			Log:    diag,
		}

		var reader core.LineReader
		if len(args) == 1 {
			fd, err := os.Open(args[0])
			if err != nil {
				proc.WriteError(stderr)
				diag.Printf("script: %v", err)
				exitCode = 1
				return nil
			}
			defer fd.Close()
			reader = core.NewScriptReader(fd)
		} else {
			interactive, closer, err := newInteractiveReader(cfg, opts)
			if err != nil {
				return err
			}
			defer closer.Close()
			reader = interactive
		}

		exitCode = core.New(opts).Run(reader)
		return nil
	},
}

// openEventLog returns the configured event logger and a closer for its file.
func openEventLog(cfg *config.Configuration) (*logger.Logger, io.Closer, error) {
	fd, err := cfg.OpenEventLog()
	if err != nil {
		return nil, nil, err
	}
	if fd == nil {
		return logger.NewNopLogger(), ioutil.NopCloser(nil), nil
	}
	return logger.NewJsonLinesLogRecorder(fd), fd, nil
}

// newInteractiveReader uses line editing if stdin is a terminal, otherwise
// it prints a plain prompt before each read.
func newInteractiveReader(cfg *config.Configuration, opts core.Options) (core.LineReader, io.Closer, error) {
	stdin, ok := opts.Stdin.(*os.File)
	if !ok || !term.IsTerminal(int(stdin.Fd())) {
		return core.NewPlainPromptReader(opts.Stdin, opts.Stdout, cfg.Prompt), ioutil.NopCloser(nil), nil
	}

	prompt := cfg.Prompt
	if cfg.ColorPrompt {
		prompt = promptColor.Sprint(prompt)
	}

	reader, err := core.NewPromptReader(&readline.Config{
		Prompt:      prompt,
		HistoryFile: cfg.HistoryPath(),
		Stdin:       stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	})
	if err != nil {
		return nil, nil, err
	}
	return reader, reader, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfgPath, "config", "", "config directory, the built-in defaults are used if unset")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log error details to stderr")
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())

	// Everything after the script name belongs to the script.
	rootCmd.Flags().SetInterspersed(false)
}
