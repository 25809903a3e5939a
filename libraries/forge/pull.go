package forge

import (
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"forgestr/messaging/relays"
)

// ListPullRequests fetches every pull-request event for the repo coordinate
// and folds the batch into records. An empty result is a valid answer, not a
// failure; relays that time out simply contribute nothing.
func ListPullRequests(repoCoordinate string, relayURLs []string, timeout time.Duration) []PullRequest {
	tm := make(nostr.TagMap)
	tm["a"] = []string{repoCoordinate}
	events := relays.FetchEvents(relayURLs, nostr.Filters{nostr.Filter{
		Kinds: []int{KindPullRequest, KindPullRequestUpdate},
		Tags:  tm,
	}}, timeout)
	return Fold(events)
}

// FormatPullRequest renders one record for terminal output.
func FormatPullRequest(pr PullRequest) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("Title: %s\n", pr.Title))
	author := pr.Author
	if len(author) > 16 {
		author = author[0:16]
	}
	out.WriteString(fmt.Sprintf("Author: %s...\n", author))
	out.WriteString(fmt.Sprintf("Status: %s\n", pr.Status))
	out.WriteString(fmt.Sprintf("Patches: %d\n", pr.PatchesCount))
	if len(pr.RootCommit) > 0 {
		root := pr.RootCommit
		if len(root) > 8 {
			root = root[0:8]
		}
		out.WriteString(fmt.Sprintf("Root: %s...\n", root))
	}
	if len(pr.Description) > 0 {
		out.WriteString(fmt.Sprintf("\n%s\n", pr.Description))
	}
	return out.String()
}
