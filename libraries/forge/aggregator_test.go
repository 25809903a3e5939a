package forge

import (
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"forgestr/engine/library"
)

func creationEvent(id string, createdAt int64, title, body string) nostr.Event {
	return nostr.Event{
		ID:        id,
		PubKey:    strings.Repeat("a", 64),
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      KindPullRequest,
		Content:   body,
		Tags: nostr.Tags{
			nostr.Tag{"a", "30617:pk:my-project"},
			nostr.Tag{"subject", title},
			library.EventRef{ID: strings.Repeat("f", 64), Marker: library.MarkerPatch}.Encode(),
		},
	}
}

func updateEvent(id string, createdAt int64, target, body string) nostr.Event {
	return nostr.Event{
		ID:        id,
		PubKey:    strings.Repeat("a", 64),
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      KindPullRequestUpdate,
		Content:   body,
		Tags: nostr.Tags{
			nostr.Tag{"a", "30617:pk:my-project"},
			nostr.Tag{"subject", "ignored"},
			library.EventRef{ID: target, Marker: library.MarkerReply}.Encode(),
		},
	}
}

func TestFoldCreations(t *testing.T) {
	older := creationEvent(strings.Repeat("1", 64), 100, "First PR", "one")
	newer := creationEvent(strings.Repeat("2", 64), 200, "Second PR", "two")

	prs := Fold([]nostr.Event{older, newer})
	require.Len(t, prs, 2)
	// newest first
	assert.Equal(t, "Second PR", prs[0].Title)
	assert.Equal(t, "First PR", prs[1].Title)
	assert.Equal(t, StatusOpen, prs[0].Status)
}

func TestFoldIsIdempotent(t *testing.T) {
	events := []nostr.Event{
		creationEvent(strings.Repeat("1", 64), 100, "First PR", "one"),
		updateEvent(strings.Repeat("2", 64), 200, strings.Repeat("1", 64), "fixed"),
	}
	once := Fold(events)
	twice := Fold(append(append([]nostr.Event{}, events...), events...))
	assert.Equal(t, once, twice)
}

func TestFoldAppliesUpdate(t *testing.T) {
	creation := creationEvent(strings.Repeat("1", 64), 100, "First PR", "initial text")
	update := updateEvent(strings.Repeat("2", 64), 200, creation.ID, "fixed")

	prs := Fold([]nostr.Event{creation, update})
	require.Len(t, prs, 1)
	assert.Equal(t, "First PR", prs[0].Title)
	assert.Equal(t, "fixed", prs[0].Description)
	assert.Equal(t, int64(100), prs[0].CreatedAt)
	assert.Equal(t, int64(200), prs[0].UpdatedAt)
	assert.Equal(t, StatusUpdated, prs[0].Status)
}

func TestFoldIsOrderIndependent(t *testing.T) {
	creation := creationEvent(strings.Repeat("1", 64), 100, "First PR", "initial text")
	first := updateEvent(strings.Repeat("2", 64), 150, creation.ID, "intermediate")
	second := updateEvent(strings.Repeat("3", 64), 200, creation.ID, "final")

	forward := Fold([]nostr.Event{creation, first, second})
	backward := Fold([]nostr.Event{second, first, creation})
	assert.Equal(t, forward, backward)
	require.Len(t, forward, 1)
	assert.Equal(t, "final", forward[0].Description)
	assert.Equal(t, int64(200), forward[0].UpdatedAt)
}

func TestFoldIgnoresStaleUpdate(t *testing.T) {
	creation := creationEvent(strings.Repeat("1", 64), 100, "First PR", "initial text")
	stale := updateEvent(strings.Repeat("2", 64), 100, creation.ID, "stale")

	prs := Fold([]nostr.Event{creation, stale})
	require.Len(t, prs, 1)
	assert.Equal(t, "initial text", prs[0].Description)
	assert.Equal(t, StatusOpen, prs[0].Status)
}

func TestFoldDropsUpdateWithoutCreation(t *testing.T) {
	update := updateEvent(strings.Repeat("2", 64), 200, strings.Repeat("1", 64), "orphan")
	assert.Empty(t, Fold([]nostr.Event{update}))
}

func TestFoldSkipsUpdateWithoutReplyRef(t *testing.T) {
	creation := creationEvent(strings.Repeat("1", 64), 100, "First PR", "initial text")
	broken := updateEvent(strings.Repeat("2", 64), 200, creation.ID, "fixed")
	broken.Tags = nostr.Tags{nostr.Tag{"a", "30617:pk:my-project"}}

	prs := Fold([]nostr.Event{creation, broken})
	require.Len(t, prs, 1)
	assert.Equal(t, "initial text", prs[0].Description)
}

func TestFoldIgnoresForeignKinds(t *testing.T) {
	patch := nostr.Event{ID: strings.Repeat("3", 64), Kind: KindPatch, Content: "diff"}
	creation := creationEvent(strings.Repeat("1", 64), 100, "First PR", "one")
	prs := Fold([]nostr.Event{patch, creation})
	require.Len(t, prs, 1)
	assert.Equal(t, "First PR", prs[0].Title)
}
