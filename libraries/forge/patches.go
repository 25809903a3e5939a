package forge

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/nbd-wtf/go-nostr"
	"forgestr/engine/library"
)

// AssemblePullRequest turns an ordered list of patches into the signed event
// chain for one pull request: one kind 1617 event per patch, each referencing
// the previous patch's id, followed by the summary event. A non-empty replyTo
// makes the summary a kind 1619 update pointing at the replaced event.
func AssemblePullRequest(keys library.Keypair, repoCoordinate, title, description string,
	patches []string, rootCommit library.Sha1, replyTo library.Sha256) ([]nostr.Event, error) {
	if len(patches) == 0 {
		return nil, ErrNoPatches
	}
	events := make([]nostr.Event, 0, len(patches)+1)
	var patchIDs []library.Sha256
	for i, patch := range patches {
		tags := nostr.Tags{
			nostr.Tag{"alt", fmt.Sprintf("git patch: %d/%d", i+1, len(patches))},
		}
		if i > 0 {
			tags = append(tags, library.EventRef{ID: patchIDs[i-1]}.Encode())
		}
		event := nostr.Event{
			PubKey:    keys.PublicKey,
			CreatedAt: nostr.Timestamp(time.Now().Unix()),
			Kind:      KindPatch,
			Tags:      tags,
			Content:   patch,
		}
		if err := event.Sign(keys.PrivateKey); err != nil {
			return nil, err
		}
		patchIDs = append(patchIDs, event.ID)
		events = append(events, event)
	}

	kind := KindPullRequest
	if len(replyTo) > 0 {
		kind = KindPullRequestUpdate
	}
	tags := nostr.Tags{
		library.RepoRefTag(repoCoordinate).Encode(),
		library.SubjectTag(title).Encode(),
		nostr.Tag{"c", rootCommit},
		library.EventRef{ID: patchIDs[0], Marker: library.MarkerPatch}.Encode(),
	}
	if len(replyTo) > 0 {
		tags = append(tags, library.EventRef{ID: replyTo, Marker: library.MarkerReply}.Encode())
	}
	summary := nostr.Event{
		PubKey:    keys.PublicKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      kind,
		Tags:      tags,
		Content:   description,
	}
	if err := summary.Sign(keys.PrivateKey); err != nil {
		return nil, err
	}
	return append(events, summary), nil
}

// PatchesSince generates one patch string per commit, oldest first. The range
// runs from HEAD back to (but excluding) since, which may be a HEAD~N
// reference or anything git can resolve to a commit. An empty since with a
// positive count takes the last count commits; both empty means just HEAD.
func PatchesSince(repoPath string, since string, count int) ([]string, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, err
	}
	head, err := repository.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRepository, err)
	}
	headCommit, err := repository.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}

	var commits []*object.Commit
	switch {
	case len(since) > 0:
		sinceHash, err := resolveSince(repository, headCommit, since)
		if err != nil {
			return nil, err
		}
		iter, err := repository.Log(&git.LogOptions{From: head.Hash()})
		if err != nil {
			return nil, err
		}
		for {
			commit, err := iter.Next()
			if err != nil {
				break
			}
			if commit.Hash == sinceHash {
				break
			}
			commits = append(commits, commit)
		}
		iter.Close()
	case count > 0:
		iter, err := repository.Log(&git.LogOptions{From: head.Hash()})
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			commit, err := iter.Next()
			if err != nil {
				break
			}
			commits = append(commits, commit)
		}
		iter.Close()
	default:
		commits = append(commits, headCommit)
	}

	// reverse into chronological order
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}

	var patches []string
	for _, commit := range commits {
		patch, err := patchForCommit(commit)
		if err != nil {
			return nil, err
		}
		patches = append(patches, patch)
	}
	return patches, nil
}

func resolveSince(repository *git.Repository, head *object.Commit, since string) (plumbing.Hash, error) {
	if strings.HasPrefix(since, "HEAD~") {
		n, err := strconv.Atoi(strings.TrimPrefix(since, "HEAD~"))
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("invalid commit reference %s", since)
		}
		current := head
		for i := 0; i < n; i++ {
			parent, err := current.Parent(0)
			if err != nil {
				return plumbing.ZeroHash, fmt.Errorf("%w: %s walks past the root commit", ErrInsufficientHistory, since)
			}
			current = parent
		}
		return current.Hash, nil
	}
	hash, err := repository.ResolveRevision(plumbing.Revision(since))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: cannot resolve %s", ErrInsufficientHistory, since)
	}
	return *hash, nil
}

// patchForCommit renders one commit as a git format-patch style mail.
func patchForCommit(commit *object.Commit) (string, error) {
	var diff *object.Patch
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return "", err
		}
		diff, err = parent.Patch(commit)
		if err != nil {
			return "", err
		}
	} else {
		tree, err := commit.Tree()
		if err != nil {
			return "", err
		}
		changes, err := object.DiffTree(nil, tree)
		if err != nil {
			return "", err
		}
		diff, err = changes.Patch()
		if err != nil {
			return "", err
		}
	}

	lines := strings.Split(commit.Message, "\n")
	subject := "No subject"
	if len(lines) > 0 && len(lines[0]) > 0 {
		subject = lines[0]
	}

	var patch strings.Builder
	patch.WriteString(fmt.Sprintf("From %s Mon Sep 17 00:00:00 2001\n", commit.Hash))
	patch.WriteString(fmt.Sprintf("From: %s <%s>\n", commit.Author.Name, commit.Author.Email))
	patch.WriteString(fmt.Sprintf("Date: %s\n", commit.Author.When.Format("Mon, 02 Jan 2006 15:04:05 -0700")))
	patch.WriteString(fmt.Sprintf("Subject: %s\n", subject))
	patch.WriteString("\n")
	if len(lines) > 1 {
		for _, line := range lines[1:] {
			patch.WriteString(line)
			patch.WriteString("\n")
		}
		patch.WriteString("\n")
	}
	patch.WriteString(diff.String())
	patch.WriteString("-- \n")
	patch.WriteString("2.34.1\n")
	return patch.String(), nil
}
