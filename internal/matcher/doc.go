// Package matcher scores how far an external candidate is from a locally-known album or track.
//
// Distances are non-negative; 0 means identical and larger means less similar. String distance is the Levenshtein edit
// distance of the case-folded, NFC-normalized strings divided by the longer string's length, so it lies in [0, 1].
// Track distance adds a duration penalty on top of the averaged string distances and can therefore exceed 1.
//
// [Best] applies a maxDistance threshold to a result set and picks the closest candidate. Ties keep the first candidate
// in input order; callers that need another order sort their candidates first.
package matcher
