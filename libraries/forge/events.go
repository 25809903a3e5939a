package forge

import (
	"fmt"
	"sort"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"forgestr/engine/library"
)

// BuildAnnouncementEvent makes a signed kind 30617 repository announcement.
// Maintainers that don't decode as npubs are skipped rather than failing the
// whole event.
func BuildAnnouncementEvent(a RepoAnnouncement, keys library.Keypair) (nostr.Event, error) {
	tags := nostr.Tags{
		library.IdentifierTag(a.Identifier).Encode(),
		library.NameTag(a.Name).Encode(),
	}
	if len(a.Description) > 0 {
		tags = append(tags, library.DescriptionTag(a.Description).Encode())
	}
	tags = append(tags, library.RootCommitTag(a.RootCommit).Encode())
	if len(a.CloneURLs) > 0 {
		tags = append(tags, library.CloneTag(a.CloneURLs).Encode())
	}
	for _, relay := range a.Relays {
		tags = append(tags, library.RelayTag(relay).Encode())
	}
	if len(a.Web) > 0 {
		tags = append(tags, library.WebTag(a.Web).Encode())
	}
	for _, maintainer := range a.Maintainers {
		prefix, value, err := nip19.Decode(maintainer)
		if err != nil || prefix != "npub" {
			library.LogCLI(fmt.Sprintf("skipping maintainer %s: not a valid npub", maintainer), 3)
			continue
		}
		tags = append(tags, library.MaintainerTag(value.(string)).Encode())
	}
	event := nostr.Event{
		PubKey:    keys.PublicKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      KindRepoAnnouncement,
		Tags:      tags,
		Content:   "",
	}
	if err := event.Sign(keys.PrivateKey); err != nil {
		return nostr.Event{}, err
	}
	return event, nil
}

// BuildStateEvent makes a signed kind 30618 state event. Refs are emitted in
// sorted order so the same state always produces the same tag list, and HEAD
// gets its duplicate literal tag when present.
func BuildStateEvent(s RepoState, keys library.Keypair) (nostr.Event, error) {
	tags := nostr.Tags{library.IdentifierTag(s.Identifier).Encode()}
	names := make([]string, 0, len(s.Refs))
	for name := range s.Refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tags = append(tags, library.RefTag{Name: name, Commit: s.Refs[name]}.Encode())
	}
	if head, ok := s.Refs["HEAD"]; ok {
		tags = append(tags, library.RefTag{Name: "HEAD", Commit: head}.Encode())
	}
	event := nostr.Event{
		PubKey:    keys.PublicKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      KindRepoState,
		Tags:      tags,
		Content:   "",
	}
	if err := event.Sign(keys.PrivateKey); err != nil {
		return nostr.Event{}, err
	}
	return event, nil
}

// ParsePullRequest reads a kind 1618/1619 event into a PullRequest record.
func ParsePullRequest(event nostr.Event) (PullRequest, error) {
	if event.Kind != KindPullRequest && event.Kind != KindPullRequestUpdate {
		return PullRequest{}, fmt.Errorf("kind %d is not a pull request event", event.Kind)
	}
	title, ok := library.GetFirstTag(event, "subject")
	if !ok {
		title = "Untitled PR"
	}
	rootCommit, _ := library.GetFirstTag(event, "c")
	status := StatusOpen
	if event.Kind == KindPullRequestUpdate {
		status = StatusUpdated
	}
	return PullRequest{
		ID:           event.ID,
		Title:        title,
		Description:  event.Content,
		Author:       event.PubKey,
		CreatedAt:    int64(event.CreatedAt),
		PatchesCount: library.CountPatchRefs(event),
		RootCommit:   rootCommit,
		Status:       status,
	}, nil
}

// StateFromEvent reads a kind 30618 event's tags back into a RepoState.
func StateFromEvent(event nostr.Event) RepoState {
	state := RepoState{Refs: make(map[string]library.Sha1)}
	for _, tag := range event.Tags {
		if len(tag) < 2 {
			continue
		}
		if tag[0] == "d" {
			state.Identifier = tag[1]
			continue
		}
		if len(tag[1]) == 40 {
			state.Refs[tag[0]] = tag[1]
		}
	}
	return state
}
