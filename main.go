package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"dsh/internal/config"
	"dsh/internal/repl"
)

var (
	configPath string
	verbose    bool
	jobControl string
	command    string
)

var rootCmd = &cobra.Command{
	Use:   "dsh",
	Short: "A small Unix shell with job control",
	Example: `
# Interactive
dsh

# Run one line and exit
dsh -c "ls | wc -l"`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Verbose = verbose
		}
		if cmd.Flags().Changed("job-control") {
			cfg.JobControl = jobControl
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		logger := log.New(os.Stderr, "dsh: ", 0)
		debug := log.New(io.Discard, "", 0)
		if cfg.Verbose {
			debug = log.New(os.Stderr, "dsh: debug: ", log.Lmicroseconds)
		}

		shell := repl.New(repl.Options{
			Config: cfg,
			Log:    logger,
			Debug:  debug,
		})
		if cmd.Flags().Changed("command") {
			return shell.Execute(command)
		}
		return shell.Run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.dsh.yaml)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log job and process events")
	rootCmd.Flags().StringVar(&jobControl, "job-control", config.JobControlAuto, "terminal job control: auto, on or off")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run one command line and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.New(os.Stderr, "dsh: ", 0).Print(err)
		os.Exit(1)
	}
}
