package models

import (
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

// PostStatus is a post state label. Help and item posts use different labels
// for the same four-state machine.
type PostStatus string

const (
	PostOpen      PostStatus = "open"
	PostMatched   PostStatus = "matched"
	PostAvailable PostStatus = "available"
	PostReserved  PostStatus = "reserved"
	PostCompleted PostStatus = "completed"
	PostCancelled PostStatus = "cancelled"
)

var postTransitions = map[Variant]map[PostStatus][]PostStatus{
	VariantHelp: {
		PostOpen:      {PostMatched, PostCancelled},
		PostMatched:   {PostCompleted, PostCancelled, PostOpen},
		PostCompleted: {},
		PostCancelled: {PostOpen},
	},
	VariantItem: {
		PostAvailable: {PostReserved, PostCancelled},
		PostReserved:  {PostCompleted, PostCancelled, PostAvailable},
		PostCompleted: {},
		PostCancelled: {PostAvailable},
	},
}

// OpenStatus is the status in which a post accepts new matches
func OpenStatus(v Variant) PostStatus {
	if v == VariantItem {
		return PostAvailable
	}
	return PostOpen
}

// MatchedStatus is the status of a post with an accepted match
func MatchedStatus(v Variant) PostStatus {
	if v == VariantItem {
		return PostReserved
	}
	return PostMatched
}

// ValidPostStatus reports whether s is a label of the variant's machine
func ValidPostStatus(v Variant, s PostStatus) bool {
	_, ok := postTransitions[v][s]
	return ok
}

// AllowedPostTransitions lists the statuses reachable from current
func AllowedPostTransitions(v Variant, current PostStatus) []PostStatus {
	return append([]PostStatus(nil), postTransitions[v][current]...)
}

// CanTransitionPost reports whether from -> to is in the variant's table
func CanTransitionPost(v Variant, from, to PostStatus) bool {
	for _, s := range postTransitions[v][from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionPost validates current -> desired against the table. The caller
// supplies the authoritative current status; nothing is re-read here.
func TransitionPost(v Variant, current, desired PostStatus) error {
	if CanTransitionPost(v, current, desired) {
		return nil
	}
	allowed := postTransitions[v][current]
	labels := make([]string, 0, len(allowed))
	for _, s := range allowed {
		labels = append(labels, string(s))
	}
	return &apperrors.TransitionError{
		Entity:  string(v) + "_post",
		From:    string(current),
		To:      string(desired),
		Allowed: labels,
	}
}
