package models

import (
	"errors"
	"fmt"
)

// ProfileStatus is the moderation state of a submitted biodata.
type ProfileStatus string

const (
	ProfilePendingApproval ProfileStatus = "pending_approval"
	ProfileApproved        ProfileStatus = "approved"
	ProfileRejected        ProfileStatus = "rejected"
)

// ProfileStatuses lists every status in display order.
var ProfileStatuses = []ProfileStatus{ProfilePendingApproval, ProfileApproved, ProfileRejected}

// ParseProfileStatus converts raw input into a known status.
func ParseProfileStatus(raw string) (ProfileStatus, error) {
	status := ProfileStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown profile status %q", raw)
	}
	return status, nil
}

// Valid reports whether s is a member of the closed status set.
func (s ProfileStatus) Valid() bool {
	switch s {
	case ProfilePendingApproval, ProfileApproved, ProfileRejected:
		return true
	}
	return false
}

// LifecycleEvent drives a profile from one status to another.
type LifecycleEvent string

const (
	EventSubmit    LifecycleEvent = "submit"
	EventApprove   LifecycleEvent = "approve"
	EventReject    LifecycleEvent = "reject"
	EventOwnerEdit LifecycleEvent = "owner_edit"
	EventDelete    LifecycleEvent = "delete"
)

// ErrIllegalTransition is returned when an event is not allowed from the current status.
var ErrIllegalTransition = errors.New("illegal profile transition")

// Transition is the outcome of applying an event to a status.
type Transition struct {
	From ProfileStatus
	To   ProfileStatus
	// Deleted marks the terminal removal of the profile.
	Deleted bool
	// Noop is set when the profile is already in the target state and nothing must be written.
	Noop bool
	// ClearReason is set when the stored rejection reason must be dropped.
	ClearReason bool
	// SetReason is set when the event stores a new rejection reason.
	SetReason bool
	// BumpEdit is set when editCount and lastEditDate advance.
	BumpEdit bool
}

// Apply resolves event against from. An empty from means the profile does not exist yet,
// which only submit accepts.
func Apply(from ProfileStatus, event LifecycleEvent) (Transition, error) {
	t := Transition{From: from}
	if from == "" {
		if event != EventSubmit {
			return t, fmt.Errorf("%w: %s without a profile", ErrIllegalTransition, event)
		}
		t.To = ProfilePendingApproval
		return t, nil
	}
	if !from.Valid() {
		return t, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, from)
	}

	switch event {
	case EventSubmit:
		return t, fmt.Errorf("%w: profile already submitted", ErrIllegalTransition)
	case EventApprove:
		t.To = ProfileApproved
		switch from {
		case ProfileApproved:
			t.Noop = true
		case ProfilePendingApproval, ProfileRejected:
			t.ClearReason = true
		}
	case EventReject:
		t.To = ProfileRejected
		t.SetReason = true
	case EventOwnerEdit:
		t.To = ProfilePendingApproval
		t.BumpEdit = true
	case EventDelete:
		t.To = from
		t.Deleted = true
	default:
		return t, fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, event)
	}
	return t, nil
}

// SourcesFor returns the statuses from which event may be applied with a write.
// It backs the conditional update guarding concurrent moderators.
func SourcesFor(event LifecycleEvent) []ProfileStatus {
	var sources []ProfileStatus
	for _, status := range ProfileStatuses {
		t, err := Apply(status, event)
		if err != nil || t.Noop {
			continue
		}
		sources = append(sources, status)
	}
	return sources
}
