package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"forgestr/engine/library"
)

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"My Repo!!":     "my-repo--",
		"already-fine":  "already-fine",
		"Under_Score":   "under_score",
		"UPPER":         "upper",
		"dots.and/path": "dots-and-path",
		"":              "",
	}
	for input, want := range cases {
		assert.Equal(t, want, SanitizeIdentifier(input), "input %q", input)
	}
}

func TestBuildNostrURL(t *testing.T) {
	npub := "npub1example"
	assert.Equal(t, "nostr://npub1example/relay.one/my-project",
		BuildNostrURL(npub, []string{"wss://relay.one", "wss://relay.two"}, "my-project"))
	assert.Equal(t, "nostr://npub1example/relay.one/my-project",
		BuildNostrURL(npub, []string{"ws://relay.one"}, "my-project"))
	assert.Equal(t, "nostr://npub1example/my-project",
		BuildNostrURL(npub, nil, "my-project"))
}

func TestDetectFromGit(t *testing.T) {
	dir := makeTestRepo(t, 3)
	announcement, err := DetectFromGit(dir)
	require.NoError(t, err)

	assert.Equal(t, SanitizeIdentifier(announcement.Name), announcement.Identifier)
	assert.Len(t, announcement.RootCommit, 40)
	assert.Empty(t, announcement.Relays)

	// the root commit is the chronologically first one
	patches, err := PatchesSince(dir, "", 3)
	require.NoError(t, err)
	assert.Contains(t, patches[0], "From "+announcement.RootCommit)
}

func TestDetectFromGitEmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := DetectFromGit(dir)
	assert.Error(t, err)
}

func TestCurrentState(t *testing.T) {
	dir := makeTestRepo(t, 2)
	state, err := CurrentState(dir, "my-project")
	require.NoError(t, err)

	assert.Equal(t, "my-project", state.Identifier)
	head, ok := state.Refs["HEAD"]
	require.True(t, ok)
	assert.Len(t, string(head), 40)

	var branch library.Sha1
	for name, hash := range state.Refs {
		if name != "HEAD" {
			branch = hash
		}
	}
	assert.Equal(t, head, branch, "HEAD should match the checked out branch")
}

func TestGitConfigRoundTrip(t *testing.T) {
	dir := makeTestRepo(t, 1)
	announcement := RepoAnnouncement{
		Identifier: "custom-id",
		Name:       "Custom Name",
		Relays:     []string{"wss://relay.one", "wss://relay.two"},
	}
	url := BuildNostrURL("npub1owner", announcement.Relays, announcement.Identifier)
	require.NoError(t, UpdateGitConfig(dir, announcement, url))

	detected, err := DetectFromGit(dir)
	require.NoError(t, err)
	assert.Equal(t, "custom-id", detected.Identifier)
	assert.Equal(t, "Custom Name", detected.Name)
	assert.Equal(t, announcement.Relays, detected.Relays)

	owner, ok := GetRepoOwner(dir)
	require.True(t, ok)
	assert.Equal(t, "npub1owner", owner)

	// a second init replaces the relay list instead of appending to it
	announcement.Relays = []string{"wss://relay.three"}
	require.NoError(t, UpdateGitConfig(dir, announcement, url))
	detected, err = DetectFromGit(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://relay.three"}, detected.Relays)
}

func TestGetRepoOwnerMissing(t *testing.T) {
	dir := makeTestRepo(t, 1)
	_, ok := GetRepoOwner(dir)
	assert.False(t, ok)
}
