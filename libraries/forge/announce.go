package forge

import (
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"forgestr/engine/library"
	"forgestr/messaging/relays"
)

// PublishResult reports an announce: the announcement event id, the canonical
// nostr URL, and the per-relay outcome. Partial relay failure still yields a
// usable result.
type PublishResult struct {
	EventID  library.Sha256 `json:"event_id"`
	NostrURL string         `json:"nostr_url"`
	Outcome  relays.Outcome `json:"outcome"`
}

// AnnounceRepository signs and publishes the kind 30617 announcement plus a
// fresh kind 30618 state snapshot to the announcement's relays.
func AnnounceRepository(a RepoAnnouncement, state RepoState, keys library.Keypair) (PublishResult, error) {
	announcement, err := BuildAnnouncementEvent(a, keys)
	if err != nil {
		return PublishResult{}, err
	}
	stateEvent, err := BuildStateEvent(state, keys)
	if err != nil {
		return PublishResult{}, err
	}
	npub, err := nip19.EncodePublicKey(keys.PublicKey)
	if err != nil {
		return PublishResult{}, err
	}
	outcome := relays.PublishToRelays([]nostr.Event{announcement, stateEvent}, a.Relays)
	result := PublishResult{
		EventID:  announcement.ID,
		NostrURL: BuildNostrURL(npub, a.Relays, a.Identifier),
		Outcome:  outcome,
	}
	return result, outcome.Err()
}
