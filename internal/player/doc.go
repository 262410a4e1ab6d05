// Package player holds the in-memory playback queue the radio feeds.
//
// [Queue] does not decode audio. It tracks an ordered list of playable tracks and a cursor, and
// publishes a change signal whenever either moves so observers can re-check [Queue.TrackCount] and
// [Queue.TracksLeft].
package player
