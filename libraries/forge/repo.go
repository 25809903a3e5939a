package forge

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"forgestr/engine/library"
)

// DetectFromGit builds a RepoAnnouncement from the local repository: the
// identifier from the directory name, the chronologically-first commit
// reachable from HEAD, the origin remote as clone URL, and whatever the
// [nostr] git-config section recorded during init.
func DetectFromGit(repoPath string) (RepoAnnouncement, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return RepoAnnouncement{}, fmt.Errorf("failed to open git repository at %s: %w", repoPath, err)
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return RepoAnnouncement{}, err
	}
	name := filepath.Base(absPath)

	rootCommit, err := getRootCommit(repository)
	if err != nil {
		return RepoAnnouncement{}, err
	}

	var cloneURLs []string
	if remote, err := repository.Remote("origin"); err == nil {
		cloneURLs = append(cloneURLs, remote.Config().URLs...)
	}

	announcement := RepoAnnouncement{
		Identifier: SanitizeIdentifier(name),
		Name:       name,
		CloneURLs:  cloneURLs,
		RootCommit: rootCommit,
	}

	// init may have pinned identifier, name and relays in git config
	cfg, err := repository.Config()
	if err == nil {
		section := cfg.Raw.Section("nostr")
		if id := section.Option("identifier"); len(id) > 0 {
			announcement.Identifier = id
		}
		if configured := section.Option("name"); len(configured) > 0 {
			announcement.Name = configured
		}
		announcement.Relays = append(announcement.Relays, section.OptionAll("relay")...)
	}
	return announcement, nil
}

// getRootCommit finds the chronologically-first commit reachable from HEAD.
func getRootCommit(repository *git.Repository) (library.Sha1, error) {
	head, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEmptyRepository, err)
	}
	iter, err := repository.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEmptyRepository, err)
	}
	defer iter.Close()
	var root *object.Commit
	err = iter.ForEach(func(commit *object.Commit) error {
		if root == nil ||
			commit.Committer.When.Before(root.Committer.When) ||
			(commit.Committer.When.Equal(root.Committer.When) && commit.Hash.String() < root.Hash.String()) {
			root = commit
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if root == nil {
		return "", ErrEmptyRepository
	}
	return root.Hash.String(), nil
}

// CurrentState enumerates every ref plus HEAD straight off the repository.
func CurrentState(repoPath string, identifier string) (RepoState, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return RepoState{}, err
	}
	state := RepoState{
		Identifier: identifier,
		Refs:       make(map[string]library.Sha1),
	}
	refs, err := repository.References()
	if err != nil {
		return RepoState{}, err
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			state.Refs[ref.Name().String()] = ref.Hash().String()
		}
		return nil
	})
	if err != nil {
		return RepoState{}, err
	}
	if head, err := repository.Head(); err == nil {
		state.Refs["HEAD"] = head.Hash().String()
	}
	return state, nil
}

// SanitizeIdentifier lowercases the name and replaces anything outside
// [a-z0-9_-] with a hyphen.
func SanitizeIdentifier(name string) string {
	var out strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		} else {
			out.WriteRune('-')
		}
	}
	return out.String()
}

// BuildNostrURL assembles the canonical locator
// nostr://<npub>[/<relay-host>]/<identifier>.
func BuildNostrURL(npub string, relayURLs []string, identifier string) string {
	var relayPart string
	if len(relayURLs) > 0 {
		host := strings.TrimPrefix(strings.TrimPrefix(relayURLs[0], "wss://"), "ws://")
		relayPart = "/" + host
	}
	return fmt.Sprintf("nostr://%s%s/%s", npub, relayPart, identifier)
}

// UpdateGitConfig writes the [nostr] section and the canonical nostr.url so
// later invocations can re-derive the repo coordinate without the vault.
func UpdateGitConfig(repoPath string, a RepoAnnouncement, nostrURL string) error {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return err
	}
	cfg, err := repository.Config()
	if err != nil {
		return err
	}
	section := cfg.Raw.Section("nostr")
	section.SetOption("identifier", a.Identifier)
	section.SetOption("name", a.Name)
	section.RemoveOption("relay")
	for _, relay := range a.Relays {
		section.AddOption("relay", relay)
	}
	section.SetOption("url", nostrURL)
	return repository.SetConfig(cfg)
}

// GetRepoOwner extracts the owner npub from the stored nostr.url, if any.
func GetRepoOwner(repoPath string) (string, bool) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", false
	}
	cfg, err := repository.Config()
	if err != nil {
		return "", false
	}
	url := cfg.Raw.Section("nostr").Option("url")
	if !strings.HasPrefix(url, "nostr://") {
		return "", false
	}
	rest := strings.TrimPrefix(url, "nostr://")
	npub := strings.Split(rest, "/")[0]
	if !strings.HasPrefix(npub, "npub") {
		return "", false
	}
	return npub, true
}
