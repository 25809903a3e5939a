package relays

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeErr(t *testing.T) {
	assert.NoError(t, Outcome{}.Err())
	assert.NoError(t, Outcome{Succeeded: []string{"wss://relay.one"}}.Err())
	assert.NoError(t, Outcome{
		Succeeded: []string{"wss://relay.one"},
		Failed:    []Failure{{Relay: "wss://relay.two", Reason: "timeout"}},
	}.Err())

	err := Outcome{
		Failed: []Failure{
			{Relay: "wss://relay.one", Reason: "timeout"},
			{Relay: "wss://relay.two", Reason: "refused"},
		},
	}.Err()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "wss://relay.one")
	assert.Contains(t, err.Error(), "timeout")
}
