package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"forgestr/engine/library"
)

// makeTestRepo builds a throwaway repository with the given number of commits,
// each touching its own file with a fixed author and monotonic timestamps.
func makeTestRepo(t *testing.T, commits int) string {
	t.Helper()
	dir := t.TempDir()
	repository, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	worktree, err := repository.Worktree()
	require.NoError(t, err)

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < commits; i++ {
		name := fmt.Sprintf("file%d.txt", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(fmt.Sprintf("content %d\n", i)), 0644))
		_, err = worktree.Add(name)
		require.NoError(t, err)
		_, err = worktree.Commit(fmt.Sprintf("commit %d\n\nbody of commit %d\n", i, i), &git.CommitOptions{
			Author: &object.Signature{
				Name:  "Test Author",
				Email: "test@example.com",
				When:  when.Add(time.Duration(i) * time.Minute),
			},
		})
		require.NoError(t, err)
	}
	return dir
}

func TestPatchesSinceHeadRange(t *testing.T) {
	dir := makeTestRepo(t, 3)
	patches, err := PatchesSince(dir, "HEAD~2", 0)
	require.NoError(t, err)
	require.Len(t, patches, 2)

	// oldest first
	assert.Contains(t, patches[0], "Subject: commit 1")
	assert.Contains(t, patches[1], "Subject: commit 2")
	assert.Contains(t, patches[0], "From: Test Author <test@example.com>")
	assert.Contains(t, patches[0], "body of commit 1")
	assert.Contains(t, patches[0], "file1.txt")
	assert.True(t, strings.HasSuffix(patches[0], "-- \n2.34.1\n"))
}

func TestPatchesSinceDefaultsToHead(t *testing.T) {
	dir := makeTestRepo(t, 2)
	patches, err := PatchesSince(dir, "", 0)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Contains(t, patches[0], "Subject: commit 1")
}

func TestPatchesSinceCount(t *testing.T) {
	dir := makeTestRepo(t, 3)
	patches, err := PatchesSince(dir, "", 2)
	require.NoError(t, err)
	require.Len(t, patches, 2)
	assert.Contains(t, patches[0], "Subject: commit 1")
	assert.Contains(t, patches[1], "Subject: commit 2")
}

func TestPatchesSinceRootCommit(t *testing.T) {
	dir := makeTestRepo(t, 1)
	patches, err := PatchesSince(dir, "", 0)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	// the root commit diffs against the empty tree
	assert.Contains(t, patches[0], "file0.txt")
}

func TestPatchesSincePastRoot(t *testing.T) {
	dir := makeTestRepo(t, 2)
	_, err := PatchesSince(dir, "HEAD~5", 0)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestPatchesSinceEmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = PatchesSince(dir, "HEAD~1", 0)
	assert.ErrorIs(t, err, ErrEmptyRepository)
}

func TestAssemblePullRequest(t *testing.T) {
	keys := testKeys(t)
	coordinate := Coordinate(keys.PublicKey, "my-project")
	rootCommit := strings.Repeat("c", 40)
	patches := []string{"patch zero", "patch one", "patch two"}

	events, err := AssemblePullRequest(keys, coordinate, "Fix parser", "please merge", patches, rootCommit, "")
	require.NoError(t, err)
	require.Len(t, events, 4)

	for i, event := range events[:3] {
		assert.Equal(t, KindPatch, event.Kind)
		assert.Equal(t, patches[i], event.Content)
		alt, ok := library.GetFirstTag(event, "alt")
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("git patch: %d/3", i+1), alt)
	}

	// patches 1 and 2 chain back to their predecessor with a plain e tag
	assert.Empty(t, tagValues(events[0], "e"))
	assert.Equal(t, [][]string{{"e", events[0].ID}}, tagValues(events[1], "e"))
	assert.Equal(t, [][]string{{"e", events[1].ID}}, tagValues(events[2], "e"))

	summary := events[3]
	assert.Equal(t, KindPullRequest, summary.Kind)
	assert.Equal(t, "please merge", summary.Content)
	assert.Equal(t, [][]string{{"a", coordinate}}, tagValues(summary, "a"))
	assert.Equal(t, [][]string{{"subject", "Fix parser"}}, tagValues(summary, "subject"))
	assert.Equal(t, [][]string{{"c", rootCommit}}, tagValues(summary, "c"))
	assert.Equal(t, [][]string{{"e", events[0].ID, "patch"}}, tagValues(summary, "e"))

	pr, err := ParsePullRequest(summary)
	require.NoError(t, err)
	assert.Equal(t, 1, pr.PatchesCount)
	assert.Equal(t, StatusOpen, pr.Status)
}

func TestAssemblePullRequestUpdate(t *testing.T) {
	keys := testKeys(t)
	replyTo := strings.Repeat("9", 64)
	events, err := AssemblePullRequest(keys, Coordinate(keys.PublicKey, "my-project"),
		"Fix parser", "now with tests", []string{"patch zero"}, strings.Repeat("c", 40), replyTo)
	require.NoError(t, err)
	require.Len(t, events, 2)

	summary := events[1]
	assert.Equal(t, KindPullRequestUpdate, summary.Kind)
	assert.Equal(t, [][]string{
		{"e", events[0].ID, "patch"},
		{"e", replyTo, "", "reply"},
	}, tagValues(summary, "e"))

	target, ok := library.GetFirstReply(summary)
	require.True(t, ok)
	assert.Equal(t, replyTo, target)
}

func TestAssemblePullRequestNoPatches(t *testing.T) {
	keys := testKeys(t)
	_, err := AssemblePullRequest(keys, "30617:pk:id", "title", "", nil, "", "")
	assert.ErrorIs(t, err, ErrNoPatches)
}
