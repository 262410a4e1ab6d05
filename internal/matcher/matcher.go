package matcher

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Options tune the duration part of track distance.
type Options struct {
	// DurationTolerance is the difference that costs nothing.
	DurationTolerance time.Duration
	// DurationScale is how much difference beyond the tolerance adds 1.0 to the distance.
	DurationScale time.Duration
}

// DefaultOptions allows 2s of drift and adds 1.0 per 30s beyond that.
var DefaultOptions = Options{
	DurationTolerance: 2 * time.Second,
	DurationScale:     30 * time.Second,
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize folds case, applies NFC, and collapses whitespace.
func Normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = whitespace.ReplaceAllString(s, " ")
	return cases.Fold().String(s)
}

// StringDistance is the case-insensitive Levenshtein distance between a and b, divided by the longer length.
func StringDistance(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return 0
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return float64(edlib.LevenshteinDistance(a, b)) / float64(longest)
}

// StripArtistPrefix removes a leading "Artist - " from title for any of the given artist names.
// The names are matched case-insensitively and literally.
func StripArtistPrefix(title string, artists []string) string {
	for _, artist := range artists {
		artist = strings.TrimSpace(artist)
		if artist == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)^\s*` + regexp.QuoteMeta(artist) + `\s*[-–—]\s*`)
		if err != nil {
			continue
		}
		if loc := re.FindStringIndex(title); loc != nil && loc[1] < len(title) {
			return title[loc[1]:]
		}
	}
	return title
}

// AlbumDistance compares a local album with a candidate. The local title is stripped of a leading
// "<candidate artist> - " first; artist distance only counts when both sides have artists.
func AlbumDistance(local, candidate models.AlbumCombo) float64 {
	names := artistNames(candidate.Artists)
	title := StripArtistPrefix(local.Album.Title, names)

	titleDist := StringDistance(title, candidate.Album.Title)

	localArtist, candidateArtist := local.ArtistString(), candidate.ArtistString()
	if localArtist == "" || candidateArtist == "" {
		return titleDist
	}
	return (titleDist + StringDistance(localArtist, candidateArtist)) / 2
}

// TrackDistance compares a local track with a candidate: averaged title/artist distance, plus a duration
// penalty when both durations are known.
func TrackDistance(local, candidate models.TrackCombo, opts Options) float64 {
	titleDist := StringDistance(local.Track.Title, candidate.Track.Title)

	dist := titleDist
	localArtist, candidateArtist := local.ArtistString(), candidate.ArtistString()
	if localArtist != "" && candidateArtist != "" {
		dist = (titleDist + StringDistance(localArtist, candidateArtist)) / 2
	}

	return dist + DurationPenalty(local.Track.Duration(), candidate.Track.Duration(), opts)
}

// DurationPenalty is 0 when either duration is unknown or the difference is within tolerance.
func DurationPenalty(a, b time.Duration, opts Options) float64 {
	if a <= 0 || b <= 0 || opts.DurationScale <= 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	over := diff - opts.DurationTolerance
	if over <= 0 {
		return 0
	}
	return float64(over) / float64(opts.DurationScale)
}

// Rank scores every candidate and returns those within maxDistance, closest first.
// Equal distances keep input order.
func Rank[C any](candidates []C, distance func(C) float64, maxDistance float64) []models.MatchResult[C] {
	results := make([]models.MatchResult[C], 0, len(candidates))
	for _, c := range candidates {
		d := distance(c)
		if d <= maxDistance {
			results = append(results, models.MatchResult[C]{Candidate: c, Distance: d})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results
}

// Best returns the closest candidate within maxDistance. The first candidate wins a tie.
func Best[C any](candidates []C, distance func(C) float64, maxDistance float64) (models.MatchResult[C], bool) {
	var best models.MatchResult[C]
	found := false
	for _, c := range candidates {
		d := distance(c)
		if d > maxDistance {
			continue
		}
		if !found || d < best.Distance {
			best = models.MatchResult[C]{Candidate: c, Distance: d}
			found = true
		}
	}
	return best, found
}

// BestAlbum matches local against album candidates.
func BestAlbum(local models.AlbumCombo, candidates []models.AlbumCandidate, maxDistance float64) (models.MatchResult[models.AlbumCandidate], bool) {
	return Best(candidates, func(c models.AlbumCandidate) float64 {
		return AlbumDistance(local, c.ToAlbumCombo())
	}, maxDistance)
}

// BestTrack matches local against track candidates.
func BestTrack(local models.TrackCombo, candidates []models.TrackCandidate, maxDistance float64, opts Options) (models.MatchResult[models.TrackCandidate], bool) {
	return Best(candidates, func(c models.TrackCandidate) float64 {
		return TrackDistance(local, c.ToTrackCombo(), opts)
	}, maxDistance)
}

func artistNames(credits []models.ArtistCredit) []string {
	names := make([]string, 0, len(credits)+1)
	if len(credits) > 1 {
		names = append(names, models.JoinArtists(credits))
	}
	for _, c := range credits {
		names = append(names, c.Name)
	}
	return names
}
