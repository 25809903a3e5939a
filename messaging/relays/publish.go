package relays

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"forgestr/engine/actors"
	"forgestr/engine/library"
)

// Failure records why one relay rejected a publish.
type Failure struct {
	Relay  string `json:"relay"`
	Reason string `json:"reason"`
}

// Outcome is the per-relay result of a publish. Partial success is a valid
// outcome; Err only reports failure when every relay failed.
type Outcome struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

func (o Outcome) Err() error {
	if len(o.Succeeded) == 0 && len(o.Failed) > 0 {
		return fmt.Errorf("all %d relays failed, first failure: %s: %s",
			len(o.Failed), o.Failed[0].Relay, o.Failed[0].Reason)
	}
	return nil
}

// PublishToRelays sends every event to every relay. Each relay is handled
// independently so one dead endpoint can't block the rest.
func PublishToRelays(events []nostr.Event, relayURLs []string) Outcome {
	conf := actors.MakeOrGetConfig()
	warmup := conf.GetDuration("connectionWarmup")
	pacing := conf.GetDuration("eventPacing")
	timeout := conf.GetDuration("publishTimeout")

	var outcome Outcome
	outcomeMu := &deadlock.Mutex{}
	wg := &deadlock.WaitGroup{}
	for _, url := range relayURLs {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			fail := func(reason string) {
				outcomeMu.Lock()
				outcome.Failed = append(outcome.Failed, Failure{Relay: url, Reason: reason})
				outcomeMu.Unlock()
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			relay, err := nostr.RelayConnect(ctx, url)
			if err != nil {
				library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
				fail(err.Error())
				return
			}
			defer relay.Close()
			// let the websocket settle before the first write
			time.Sleep(warmup)
			for i, event := range events {
				if i > 0 {
					time.Sleep(pacing)
				}
				if _, err := relay.Publish(ctx, event); err != nil {
					library.LogCLI(fmt.Sprintf("could not publish to relay %s: %s", url, err), 2)
					fail(err.Error())
					return
				}
			}
			outcomeMu.Lock()
			outcome.Succeeded = append(outcome.Succeeded, url)
			outcomeMu.Unlock()
		}(url)
	}
	wg.Wait()
	return outcome
}
