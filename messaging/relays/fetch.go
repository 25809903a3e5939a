package relays

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"forgestr/engine/library"
)

// FetchEvents subscribes to every relay with the given filters and drains
// whatever arrives until the timeout. A timeout is not an error: the partial
// (possibly empty) result is returned as-is. Events are deduplicated by id.
func FetchEvents(relayURLs []string, filters nostr.Filters, timeout time.Duration) []nostr.Event {
	sane := library.ValidateSaneExecutionTime()
	defer sane()
	events := make(map[library.Sha256]nostr.Event)
	eventsMu := &deadlock.Mutex{}
	wait := &deadlock.WaitGroup{}
	for _, url := range relayURLs {
		wait.Add(1)
		go func(url string) {
			defer wait.Done()
			ctx := context.Background()
			relay, err := nostr.RelayConnect(ctx, url)
			if err != nil {
				library.LogCLI(err.Error(), 2)
				return
			}
			ctxsub, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			sub, err := relay.Subscribe(ctxsub, filters)
			if err != nil {
				library.LogCLI(err.Error(), 2)
				relay.Close()
				return
			}
		L:
			for {
				select {
				case ev, ok := <-sub.Events:
					if !ok {
						break L
					}
					eventsMu.Lock()
					events[ev.ID] = *ev
					eventsMu.Unlock()
				case <-time.After(timeout):
					break L
				}
			}
			go func() {
				sub.Close()
				relay.Close()
			}()
		}(url)
	}
	wait.Wait()
	var result []nostr.Event
	for _, event := range events {
		result = append(result, event)
	}
	return result
}
