// Package remote serves a plant over a websocket and provides a client that
// plugs the remote plant into a control loop as its sensor and actuator.
package remote

import (
	"errors"
	"time"

	"github.com/san-kum/mindstone/internal/state"
)

const (
	TypeObservation = "observation"
	TypeCommand     = "command"
	TypeError       = "error"
)

// ErrRemote wraps errors reported by the worker.
var ErrRemote = errors.New("remote worker error")

// Message is the single JSON frame exchanged on the websocket.
//
// Observations may be nested one level per component
// ({"pendulum": {"theta": 0.1}}); receivers flatten them with ".".
type Message struct {
	Type         string             `json:"type"`
	Time         float64            `json:"time"`
	Observations map[string]any     `json:"observations,omitempty"`
	Values       map[string]float64 `json:"values,omitempty"`
	Error        string             `json:"error,omitempty"`
	ReceivedAt   time.Time          `json:"received_at,omitzero"`
	SentAt       time.Time          `json:"sent_at"`
}

func observation(snap state.Snapshot, component string) Message {
	values := make(map[string]any)
	for _, ch := range snap.Channels() {
		values[ch] = snap.Value(ch)
	}
	obs := values
	if component != "" {
		obs = map[string]any{component: values}
	}
	return Message{
		Type:         TypeObservation,
		Time:         snap.Time(),
		Observations: obs,
		SentAt:       time.Now(),
	}
}

// Snapshot rebuilds the snapshot carried by an observation message.
func (m Message) Snapshot() state.Snapshot {
	return state.NewSnapshot(m.Time, state.Flatten(m.Observations, "."), nil)
}
