package forge

import (
	"fmt"
	"sort"

	"github.com/nbd-wtf/go-nostr"
	"forgestr/engine/library"
)

// Fold reduces an unordered, possibly duplicated batch of pull-request events
// into the canonical record set. Creations are keyed by event id, so a
// re-delivered event collapses into the record it already produced. Updates
// are applied in (timestamp, id) order, which makes the result independent of
// relay delivery order: the newest applicable update always wins. Updates
// whose target creation is not in the batch are dropped; the creation may
// simply not have arrived, which is an expected transport condition.
//
// Malformed events are skipped individually, never failing the whole fold.
func Fold(events []nostr.Event) []PullRequest {
	prs := make(map[library.Sha256]PullRequest)
	var updates []nostr.Event
	for _, event := range events {
		switch event.Kind {
		case KindPullRequest:
			pr, err := ParsePullRequest(event)
			if err != nil {
				library.LogCLI(fmt.Sprintf("skipping malformed pull request event %s: %s", event.ID, err), 3)
				continue
			}
			prs[event.ID] = pr
		case KindPullRequestUpdate:
			updates = append(updates, event)
		}
	}

	sort.Slice(updates, func(i, j int) bool {
		if updates[i].CreatedAt != updates[j].CreatedAt {
			return updates[i].CreatedAt < updates[j].CreatedAt
		}
		return updates[i].ID < updates[j].ID
	})
	for _, event := range updates {
		target, ok := library.GetFirstReply(event)
		if !ok {
			library.LogCLI(fmt.Sprintf("skipping update event %s: no reply reference", event.ID), 3)
			continue
		}
		existing, ok := prs[target]
		if !ok {
			// the creation hasn't arrived (and may never); not a fault
			continue
		}
		timestamp := int64(event.CreatedAt)
		if timestamp > existing.CreatedAt {
			existing.Description = event.Content
			existing.UpdatedAt = timestamp
			existing.Status = StatusUpdated
			prs[target] = existing
		}
	}

	result := make([]PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, pr)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}
