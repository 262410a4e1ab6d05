package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/radio"
	"github.com/desertthunder/tonearm/internal/repositories"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/desertthunder/tonearm/internal/tasks"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database is opened on first use so commands that never touch the library do not create it.
type Runner struct {
	config    *shared.Config
	providers Providers
	logger    *log.Logger
	output    io.Writer
	styles    Styles

	db      *sqlx.DB
	ownsDB  bool
	library *repositories.LibraryRepository
	radio   *repositories.RadioRepository
	engine  *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	Spotify     radio.Source
	MusicBrainz services.Provider
	YouTube     radio.Source
	// DB is used instead of opening config.Database.Path. The caller keeps ownership.
	DB     *sqlx.DB
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		providers: Providers{
			Spotify:     opts.Spotify,
			MusicBrainz: opts.MusicBrainz,
			YouTube:     opts.YouTube,
		},
		logger: opts.Logger,
		output: opts.Output,
		styles: NewStyles(),
		db:     opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, libraryCommand, matchCommand, radioCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// open connects the library repositories and the engine, migrating the database when needed.
func (r *Runner) open(ctx context.Context) error {
	if r.engine != nil {
		return nil
	}

	if r.db == nil {
		path := r.config.Database.Path
		db, err := shared.NewDatabase(path)
		if err != nil {
			return err
		}
		if path != ":memory:" {
			shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		}
		r.db, r.ownsDB = db, true
	}

	if err := shared.RunMigrations(ctx, r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.library = repositories.NewLibraryRepository(r.db, r.logger)
	r.radio = repositories.NewRadioRepository(r.db)

	var playable services.Provider
	if r.providers.YouTube != nil {
		playable = r.providers.YouTube
	}
	r.engine = tasks.NewEngine(tasks.EngineOpts{
		Library:          r.library,
		Playable:         playable,
		MaxAlbumDistance: r.config.Matching.MaxAlbumDistance,
		MaxTrackDistance: r.config.Matching.MaxTrackDistance,
		Logger:           r.logger,
	})
	return nil
}

// Close closes the database when the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db, r.engine = nil, nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}

func (r *Runner) writeHeader(title string) {
	r.writePlainln("%s", r.styles.Header.Render(title))
}
