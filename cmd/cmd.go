// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// calendarCommand runs the calendar bridge.
func calendarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "calendar",
		Aliases: []string{"cal", "outlook"},
		Usage:   "Run the calendar bridge (next event + today's agenda)",
		Flags:   commonFlags(),
		Action:  r.Calendar,
	}
}

// playbackCommand runs the playback bridge.
func playbackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playback",
		Aliases: []string{"play", "spotify"},
		Usage:   "Run the playback bridge (currently playing track)",
		Flags:   commonFlags(),
		Action:  r.Playback,
	}
}

// setupCommand handles first-run initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file and initialize the token database",
		Flags:  commonFlags(),
		Action: r.Setup,
	}
}
