package models

// AlbumCandidate is a provider-returned album that has not been reconciled with the library.
// Each provider has its own concrete type; all of them can produce a canonical combo.
type AlbumCandidate interface {
	Provider() Provider
	CandidateID() string
	ToAlbumCombo() AlbumCombo
}

// TrackCandidate is a provider-returned track that has not been reconciled with the library.
type TrackCandidate interface {
	Provider() Provider
	CandidateID() string
	ToTrackCombo() TrackCombo
}

// MatchResult pairs a candidate with its distance to a local record. Lower is better.
type MatchResult[C any] struct {
	Candidate C
	Distance  float64
}

// RecommendationSeeds are the provider ids recommendations are requested from.
type RecommendationSeeds struct {
	Tracks  []string
	Artists []string
	Albums  []string
}

// Empty reports whether no seed was given.
func (s RecommendationSeeds) Empty() bool {
	return len(s.Tracks) == 0 && len(s.Artists) == 0 && len(s.Albums) == 0
}
