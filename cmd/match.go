package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/desertthunder/tonearm/internal/tasks"
	"github.com/urfave/cli/v3"
)

func mergeOptions(cmd *cli.Command) (tasks.MergeOptions, error) {
	opts := tasks.DefaultMergeOptions

	strategy, ok := models.ParseTrackMergeStrategy(cmd.String("tracks"))
	if !ok {
		return opts, fmt.Errorf("%w: unknown track strategy %q", shared.ErrInvalidArgument, cmd.String("tracks"))
	}
	opts.Tracks = strategy

	if cmd.Bool("replace-lists") {
		opts.Lists = models.ListReplace
		opts.TrackArtists = models.ListReplace
	}
	return opts, nil
}

// MatchAlbum matches one library album against a provider and saves the merge.
func (r *Runner) MatchAlbum(ctx context.Context, cmd *cli.Command) error {
	p, err := r.providers.Lookup(cmd.String("provider"))
	if err != nil {
		return err
	}
	opts, err := mergeOptions(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	albumID := cmd.String("id")
	r.logger.Info("matching album", "id", albumID, "provider", p.Name(), "tracks", opts.Tracks)

	combo, err := r.engine.MatchLibraryAlbum(ctx, p, albumID, opts)
	if errors.Is(err, shared.ErrNoMatch) {
		r.writePlainln("%s %v", r.styles.Warn.Render("✗"), shared.ErrNoMatch)
		return nil
	}
	if err != nil {
		return err
	}

	r.writePlainln("%s Matched on %s", r.styles.OK.Render("✓"), p.Name())
	r.writeAlbumCombo(combo)
	return nil
}

// MatchLibrary matches every visible library album against a provider.
func (r *Runner) MatchLibrary(ctx context.Context, cmd *cli.Command) error {
	p, err := r.providers.Lookup(cmd.String("provider"))
	if err != nil {
		return err
	}
	opts, err := mergeOptions(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	ids, err := r.library.ListAlbumIDs(ctx)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.LoadLibrary:
				r.writePlainln("%s", r.styles.Muted.Render(update.Message))
			case tasks.MatchAlbums:
				if res, ok := update.Data.(tasks.AlbumMatchResult); ok && !res.Matched {
					r.writePlainln("  %s", r.styles.Warn.Render(update.Message))
				} else {
					r.writePlainln("  %s", update.Message)
				}
			}
		}
	}()

	result, err := r.engine.BulkMatch(ctx, progressCh, p, ids, tasks.BulkMatchOpts{
		NumWorkers: int(cmd.Int("workers")),
		Merge:      opts,
	})
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writeHeader("Match Complete")
		r.writePlainln("Provider: %s", result.Provider)
		r.writePlainln("Matched: %s / %d", r.styles.OK.Render(fmt.Sprint(result.Matched)), result.Total)
		r.writePlainln("Unmatched: %d", result.Unmatched)
		if result.Failed > 0 {
			r.writePlainln("Failed: %s", r.styles.Err.Render(fmt.Sprint(result.Failed)))
		}
	}
	return err
}
