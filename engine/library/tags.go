package library

import (
	"github.com/nbd-wtf/go-nostr"
)

// Typed tag variants. Every tag this system reads or writes goes through one
// of these so that positional indexing into the wire array-of-strings form
// stays in this file.

type IdentifierTag string

func (t IdentifierTag) Encode() nostr.Tag { return nostr.Tag{"d", string(t)} }

type NameTag string

func (t NameTag) Encode() nostr.Tag { return nostr.Tag{"name", string(t)} }

type DescriptionTag string

func (t DescriptionTag) Encode() nostr.Tag { return nostr.Tag{"description", string(t)} }

type RootCommitTag Sha1

func (t RootCommitTag) Encode() nostr.Tag { return nostr.Tag{"r", string(t)} }

type SubjectTag string

func (t SubjectTag) Encode() nostr.Tag { return nostr.Tag{"subject", string(t)} }

// CloneTag carries every clone URL in a single tag.
type CloneTag []string

func (t CloneTag) Encode() nostr.Tag { return append(nostr.Tag{"clone"}, t...) }

// RelayTag is emitted once per relay endpoint.
type RelayTag string

func (t RelayTag) Encode() nostr.Tag { return nostr.Tag{"relays", string(t)} }

// WebTag carries every web URL in a single tag.
type WebTag []string

func (t WebTag) Encode() nostr.Tag { return append(nostr.Tag{"web"}, t...) }

// MaintainerTag references a maintainer by hex public key.
type MaintainerTag Account

func (t MaintainerTag) Encode() nostr.Tag { return nostr.Tag{"p", string(t)} }

// RepoRefTag is the "a" coordinate "<kind>:<pubkey>:<identifier>".
type RepoRefTag string

func (t RepoRefTag) Encode() nostr.Tag { return nostr.Tag{"a", string(t)} }

// RefTag maps a git ref name to a commit hash in a state event.
type RefTag struct {
	Name   string
	Commit Sha1
}

func (t RefTag) Encode() nostr.Tag { return nostr.Tag{t.Name, t.Commit} }

// Markers used on event references.
const (
	MarkerPatch = "patch"
	MarkerReply = "reply"
)

// EventRef is an "e" tag pointing at another event. The patch marker sits at
// index 2, the reply marker at index 3 after an empty relay hint slot.
type EventRef struct {
	ID     Sha256
	Marker string
}

func (t EventRef) Encode() nostr.Tag {
	switch t.Marker {
	case MarkerPatch:
		return nostr.Tag{"e", t.ID, MarkerPatch}
	case MarkerReply:
		return nostr.Tag{"e", t.ID, "", MarkerReply}
	default:
		return nostr.Tag{"e", t.ID}
	}
}

// DecodeEventRef parses an "e" tag back into an EventRef.
func DecodeEventRef(tag nostr.Tag) (EventRef, bool) {
	if len(tag) < 2 || tag[0] != "e" || len(tag[1]) != 64 {
		return EventRef{}, false
	}
	ref := EventRef{ID: tag[1]}
	if len(tag) > 3 && tag[3] == MarkerReply {
		ref.Marker = MarkerReply
	} else if len(tag) > 2 && tag[2] == MarkerPatch {
		ref.Marker = MarkerPatch
	}
	return ref, true
}

func GetFirstTag(e nostr.Event, startsWith string) (string, bool) {
	for _, tag := range e.Tags {
		if tag.StartsWith([]string{startsWith}) && len(tag) > 1 {
			return tag.Value(), true
		}
	}
	return "", false
}

// GetFirstReply returns the id of the event this event replies to.
func GetFirstReply(e nostr.Event) (Sha256, bool) {
	for _, tag := range e.Tags {
		if ref, ok := DecodeEventRef(tag); ok && ref.Marker == MarkerReply {
			return ref.ID, true
		}
	}
	return "", false
}

// CountPatchRefs counts event references carrying the patch marker.
func CountPatchRefs(e nostr.Event) (n int) {
	for _, tag := range e.Tags {
		if ref, ok := DecodeEventRef(tag); ok && ref.Marker == MarkerPatch {
			n++
		}
	}
	return
}
