package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/desertthunder/tonearm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryImport imports the local files listed in a text file, one per line.
//
// Blank lines and lines starting with # are skipped. Unparseable lines are reported and skipped.
func (r *Runner) LibraryImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: file listing local tracks", shared.ErrMissingArgument)
	}

	files, skipped, err := r.readLocalFiles(path)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	r.logger.Info("importing local files", "path", path, "files", len(files), "skipped", skipped)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlainln("  %s", update.Message)
		}
	}()

	result, err := r.engine.ImportLocalFiles(ctx, progressCh, files)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writeHeader("Import Complete")
	r.writePlainln("Albums: %d", len(result.Albums))
	r.writePlainln("Tracks without album: %d", len(result.Tracks))
	if skipped > 0 {
		r.writePlainln("%s", r.styles.Warn.Render(fmt.Sprintf("Skipped lines: %d", skipped)))
	}
	if len(result.Failed) > 0 {
		r.writePlainln("%s", r.styles.Err.Render(fmt.Sprintf("Failed: %d", len(result.Failed))))
		for _, err := range result.Failed {
			r.writePlainln("  - %v", err)
		}
	}
	return nil
}

func (r *Runner) readLocalFiles(path string) ([]services.LocalFile, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open track list: %w", err)
	}
	defer f.Close()

	var files []services.LocalFile
	skipped := 0
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		file, err := services.ParseLocalFileLine(line)
		if err != nil {
			r.logger.Warn("skipping line", "line", n, "error", err)
			skipped++
			continue
		}
		files = append(files, file)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read track list: %w", err)
	}
	return files, skipped, nil
}

// LibraryAlbums lists the visible library albums.
func (r *Runner) LibraryAlbums(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	albums, err := r.library.ListAlbums(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(albums, cmd.Bool("pretty"))
	}

	r.writeHeader(fmt.Sprintf("Library (%d albums)", len(albums)))
	for _, a := range albums {
		r.writePlainln("%s  %s %s", r.styles.Muted.Render(a.ID), a.Title, r.styles.Muted.Render(sources(a)))
	}
	return nil
}

// LibraryAlbum prints one album with its tracks.
func (r *Runner) LibraryAlbum(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	combo, err := r.library.AlbumCombo(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("failed to load album: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(combo, true)
	}
	r.writeAlbumCombo(combo)
	return nil
}

func (r *Runner) writeAlbumCombo(combo models.AlbumCombo) {
	title := combo.Album.Title
	if artists := combo.ArtistString(); artists != "" {
		title = artists + " - " + title
	}
	if combo.Album.Year > 0 {
		title = fmt.Sprintf("%s (%d)", title, combo.Album.Year)
	}
	r.writeHeader(title)
	if len(combo.Tags) > 0 {
		r.writePlainln("%s", r.styles.Muted.Render(strings.Join(combo.Tags, ", ")))
	}
	for _, tc := range combo.Tracks {
		r.writePlainln("%2d. %s %s", tc.Track.AlbumPosition, tc.Track.Title, r.styles.Muted.Render(formatDuration(tc.Track.Duration())))
	}
}

// sources renders which providers an album is linked to, e.g. "[spotify musicbrainz]".
func sources(a models.Album) string {
	var linked []string
	if a.IsLocal {
		linked = append(linked, string(models.ProviderLocal))
	}
	for _, p := range []models.Provider{models.ProviderSpotify, models.ProviderMusicBrainz, models.ProviderYouTube} {
		if a.ExternalID(p) != "" {
			linked = append(linked, string(p))
		}
	}
	if len(linked) == 0 {
		return ""
	}
	return "[" + strings.Join(linked, " ") + "]"
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
