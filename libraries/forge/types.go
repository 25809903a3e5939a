package forge

import (
	"errors"
	"fmt"

	"forgestr/engine/library"
)

// NIP-34 event kinds. These are wire constants shared with every other
// client, do not change them.
const (
	KindRepoAnnouncement  = 30617
	KindRepoState         = 30618
	KindPatch             = 1617
	KindPullRequest       = 1618
	KindPullRequestUpdate = 1619
)

var (
	ErrEmptyRepository     = errors.New("no commits found in repository")
	ErrInsufficientHistory = errors.New("not enough commits in history for the requested range")
	ErrNoPatches           = errors.New("no patches to send")
)

// RepoAnnouncement describes a repository for a kind 30617 event.
type RepoAnnouncement struct {
	Identifier   string   `json:"identifier"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	CloneURLs    []string `json:"clone_urls"`
	Relays       []string `json:"relays"`
	Web          []string `json:"web"`
	RootCommit   string   `json:"root_commit"`
	Maintainers  []string `json:"maintainers"` // npubs
	GraspServers []string `json:"grasp_servers"`
}

// RepoState maps every ref (plus the synthetic HEAD) to a commit hash for a
// kind 30618 event. It is rebuilt from the repository on every query and
// never diffed against a previous snapshot.
type RepoState struct {
	Identifier string                  `json:"identifier"`
	Refs       map[string]library.Sha1 `json:"refs"`
}

// Pull request status values.
const (
	StatusOpen    = "open"
	StatusUpdated = "updated"
)

// PullRequest is the record materialized by folding pull-request events. It
// has no identity of its own: folding the same event set always reproduces
// the same records.
type PullRequest struct {
	ID           library.Sha256  `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Author       library.Account `json:"author"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at,omitempty"`
	PatchesCount int             `json:"patches_count"`
	RootCommit   string          `json:"root_commit,omitempty"`
	Status       string          `json:"status"`
}

// Coordinate builds the "a" tag value addressing one announced repository.
func Coordinate(pubkey library.Account, identifier string) string {
	return fmt.Sprintf("%d:%s:%s", KindRepoAnnouncement, pubkey, identifier)
}
