// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// newApp builds the root command with global flags and every subcommand.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "chartx",
		Usage:   "Poll a Spotify chart playlist and export enriched snapshots",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func playlistFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "playlist",
		Aliases: []string{"p"},
		Usage:   "Playlist ID to poll (defaults to collector.playlist_id)",
	}
}

func outputFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   usage,
	}
}

// setupCommand writes a starter config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml from the built-in template",
		Action: r.Setup,
	}
}

// verifyCommand checks credentials against the target playlist.
func verifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "verify",
		Usage:  "Verify Spotify credentials by fetching the playlist",
		Flags:  []cli.Flag{playlistFlag()},
		Action: r.Verify,
	}
}

// snapshotCommand captures the chart once.
func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Capture the chart once and print it",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Save the capture as JSON in the output directory",
			},
			outputFlag("Output directory (defaults to collector.output_dir)"),
		},
		Action: r.Snapshot,
	}
}

// collectCommand polls the chart over a time range.
func collectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "collect",
		Aliases: []string{"run"},
		Usage:   "Capture the chart at every interval between --start and --end",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.StringFlag{
				Name:  "start",
				Usage: "First tick, e.g. 2024-01-01T00 or \"2024 1 1 0\" (defaults to the current hour)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Last tick (defaults to --start)",
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Tick spacing: hour, day, week, month or year",
			},
			outputFlag("Output directory (defaults to collector.output_dir)"),
			&cli.IntFlag{
				Name:  "checkpoint-every",
				Usage: "Write a checkpoint whenever the record count is a multiple of this",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress view",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
			},
		},
		Action: r.Collect,
	}
}

// reportCommand renders an HTML report from collected records.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Render rank and genre charts from a checkpoint (.json) or export (.csv)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Flags: []cli.Flag{
			outputFlag("HTML file to write"),
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of titles in the rank chart",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "serve",
				Usage: "Serve the report on this address instead of writing a file (e.g. :8080)",
			},
		},
		Action: r.Report,
	}
}
