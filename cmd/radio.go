package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/player"
	"github.com/desertthunder/tonearm/internal/radio"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) newRadio(queue *player.Queue) *radio.Manager {
	return radio.NewManager(radio.Options{
		Library:           r.library,
		State:             r.radio,
		Resolver:          r.engine,
		Source:            r.providers.RadioSource(),
		Playback:          queue,
		LowWaterTotal:     r.config.Radio.LowWaterTotal,
		LowWaterRemaining: r.config.Radio.LowWaterRemaining,
		SeedSampleSize:    r.config.Radio.SeedSampleSize,
		Logger:            r.logger,
	})
}

// RadioPlay runs a radio session on an in-memory queue, printing each track as it is played.
//
// Every printed track is advanced past immediately, so the session keeps refilling until --limit
// tracks were played or its sources run out. The session is saved and can be resumed later.
func (r *Runner) RadioPlay(ctx context.Context, cmd *cli.Command) error {
	t, err := models.ParseRadioType(cmd.String("type"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	queue := player.NewQueue(r.logger)
	manager := r.newRadio(queue)

	if cmd.Bool("resume") {
		err = manager.Resume(ctx)
		if errors.Is(err, shared.ErrNotFound) {
			r.writePlainln("%s", r.styles.Warn.Render("No saved radio session"))
			return nil
		}
	} else {
		err = manager.Activate(ctx, t, cmd.String("seed"))
	}
	if err != nil {
		return err
	}
	defer manager.Stop()

	sessionDone := make(chan error, 1)
	go func() { sessionDone <- manager.Wait(ctx) }()

	limit := int(cmd.Int("limit"))
	played := 0
	play := func() {
		tracks := queue.Tracks()
		for ; played < len(tracks) && played < limit; played++ {
			r.writeRadioTrack(played+1, tracks[played])
			queue.Advance()
		}
	}

	for played < limit {
		changed := queue.Changed()
		play()
		if played >= limit {
			break
		}

		select {
		case <-changed:
		case err := <-sessionDone:
			play()
			return r.radioEnded(err, played)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.writePlain("\n")
	r.writePlainln("%s", r.styles.Muted.Render(fmt.Sprintf("Stopped after %d tracks. Continue with: tonearm radio play --resume", played)))
	return nil
}

func (r *Runner) radioEnded(err error, played int) error {
	switch {
	case errors.Is(err, shared.ErrNoRecommendations):
		r.writePlainln("%s %v", r.styles.Warn.Render("✗"), shared.ErrNoRecommendations)
		return nil
	case err != nil:
		return err
	}
	r.writePlain("\n")
	r.writePlainln("%s", r.styles.Muted.Render(fmt.Sprintf("Radio ran out after %d tracks", played)))
	return nil
}

func (r *Runner) writeRadioTrack(n int, tc models.TrackCombo) {
	source := models.ProviderLocal
	if tc.Track.YoutubeVideoID != "" {
		source = models.ProviderYouTube
	}
	title := tc.Track.Title
	if artists := tc.ArtistString(); artists != "" {
		title = artists + " - " + title
	}
	r.writePlainln("%3d. %s %s", n, r.styles.Track.Render(title), r.styles.Muted.Render(fmt.Sprintf("[%s %s]", source, formatDuration(tc.Track.Duration()))))
}

// RadioStatus prints the saved radio session.
func (r *Runner) RadioStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	state, err := r.radio.LoadRadio(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		r.writePlainln("%s", r.styles.Muted.Render("No saved radio session"))
		return nil
	}
	if err != nil {
		return err
	}

	r.writeHeader("Radio")
	r.writePlainln("Type: %s", state.Type)
	if state.SeedID != "" {
		r.writePlainln("Seed: %s", state.SeedID)
	}
	r.writePlainln("Played: %d spotify, %d youtube, %d local",
		len(state.UsedSpotifyTrackIDs), len(state.UsedYoutubeVideoIDs), len(state.UsedLocalTrackIDs))
	r.writePlainln("Updated: %s", state.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

// RadioClear forgets the saved radio session.
func (r *Runner) RadioClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.radio.ClearRadio(ctx); err != nil {
		return err
	}
	r.writePlainln("%s Radio session cleared", r.styles.OK.Render("✓"))
	return nil
}
