// Package merge reconciles two versions of the same album-with-tracks record.
//
// A [Builder] is seeded with the library's combo and consumes one or more external combos. Each step fills gaps in the
// seed without overwriting data it already has; list fields follow a [models.ListMergeStrategy] and track lists are
// aligned by disc and position under a [models.TrackMergeStrategy]. A builder is single use: after [Builder.Build] every
// further call fails with [shared.ErrBuilderConsumed].
package merge
