// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pulse/internal/config"
	"pulse/pkg/build"
)

// Command names returned in Config.Command.
const (
	CommandList   = "list"
	CommandReplay = "replay"
	CommandExport = "export"
)

type flags struct {
	configPath string
	source     string
	device     int
	verbose    bool
	record     bool
	output     string
}

// ParseArgs parses os.Args and loads the configuration they point at. It
// returns nil and no error when nothing should run (help or version).
func ParseArgs() (*config.Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var f flags
	var options *config.Config

	// load reads the file, then applies any flags given on the command line.
	load := func(cmd *cobra.Command, command string, args []string) error {
		cfg, err := config.LoadConfig(f.configPath)
		if err != nil {
			return err
		}
		fl := cmd.Flags()
		if fl.Changed("source") {
			cfg.Sensor.Source = f.source
		}
		if fl.Changed("device") {
			cfg.Sensor.InputDevice = f.device
		}
		if fl.Changed("record") {
			cfg.Recording.Enabled = f.record
		}
		cfg.Verbose = f.verbose
		cfg.OutputFile = f.output
		cfg.Command = command
		cfg.Args = args
		if err := cfg.Validate(); err != nil {
			return err
		}
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "", args)
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available line-in input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList, args)
		},
	})

	// Replay command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandReplay + " <recording.wav>",
		Short: "Run the detector over a raw recording and print beats and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandReplay, args)
		},
	})

	// Export command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandExport + " <events.csv> <report.xlsx>",
		Short: "Export the event log to a spreadsheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandExport, args)
		},
	})

	// Configuration
	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "f", "",
		"Path to a YAML config file. Default searches pulse.yaml then config.yaml")

	// Sensor Configuration
	rootCmd.PersistentFlags().StringVarP(&f.source, "source", "s", config.DefaultSource,
		"Raw sample source: simulator, wav or linein")
	rootCmd.PersistentFlags().IntVarP(&f.device, "device", "d", config.DefaultInputDevice,
		"Line-in input device ID. Use 'list' command to see available devices.")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&f.record, "record", "r", config.DefaultRecordInputStream,
		"Record raw samples to a WAV file for later replay")
	rootCmd.PersistentFlags().StringVarP(&f.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
