// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and the library database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with defaults",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// libraryCommand handles the local library
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Local library operations",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import local files listed as path|title|artist|album|seconds lines",
				ArgsUsage: "<file>",
				Action:    r.LibraryImport,
			},
			{
				Name:  "albums",
				Usage: "List library albums",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.LibraryAlbums,
			},
			{
				Name:  "album",
				Usage: "Show an album with its tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Library album ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryAlbum,
			},
		},
	}
}

func mergeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Provider to match against (spotify, musicbrainz, youtube)",
			Value: "musicbrainz",
		},
		&cli.StringFlag{
			Name:  "tracks",
			Usage: "Which one-sided tracks survive (keep_self, keep_other, keep_most, keep_least)",
			Value: "keep_self",
		},
		&cli.BoolFlag{
			Name:  "replace-lists",
			Usage: "Replace artists and tags with the provider's instead of merging",
		},
	}
}

// matchCommand reconciles library albums with providers
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Match library albums against a provider and merge the result",
		Commands: []*cli.Command{
			{
				Name:  "album",
				Usage: "Match a single library album",
				Flags: append(mergeFlags(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Library album ID",
						Required: true,
					},
				),
				Action: r.MatchAlbum,
			},
			{
				Name:  "library",
				Usage: "Match every visible library album",
				Flags: append(mergeFlags(),
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Number of concurrent workers (max 10)",
						Value:   3,
					},
				),
				Action: r.MatchLibrary,
			},
		},
	}
}

// radioCommand runs radio sessions against the in-memory player
func radioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "radio",
		Usage: "Recommendation radio",
		Commands: []*cli.Command{
			{
				Name:  "play",
				Usage: "Start a radio session and print the tracks it queues",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Radio type (library, artist, album, track)",
						Value: "library",
					},
					&cli.StringFlag{
						Name:  "seed",
						Usage: "Library album or track ID, or a provider artist ID for artist radio",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Stop after this many tracks",
						Value:   25,
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Resume the saved session instead of starting a new one",
					},
				},
				Action: r.RadioPlay,
			},
			{
				Name:   "status",
				Usage:  "Show the saved radio session",
				Action: r.RadioStatus,
			},
			{
				Name:   "clear",
				Usage:  "Forget the saved radio session",
				Action: r.RadioClear,
			},
		},
	}
}
