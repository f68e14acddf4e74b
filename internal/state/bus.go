package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/mqtt"
)

// BusClient is the MQTT surface the bus needs. It is satisfied by an
// adapter over *mqtt.Client.
type BusClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Bus mirrors the store onto MQTT.
//
// Outbound, every state write is published retained to <root>/state/<key>.
// Inbound, messages on <root>/set/<key> become state writes (ack=false
// unless the payload says otherwise) and messages on <root>/object/<key>
// extend or delete objects. Inbound writes notify subscribers exactly like
// local ones.
type Bus struct {
	client BusClient
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// NewBus creates a Bus publishing under topics.
func NewBus(client BusClient, topics mqtt.Topics, qos byte, logger Logger) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bus{client: client, topics: topics, qos: qos, logger: logger}
}

// busState is the JSON form of a mirrored state.
type busState struct {
	Val  any    `json:"val"`
	Ack  bool   `json:"ack"`
	TS   string `json:"ts"`
	From string `json:"from,omitempty"`
}

func (b *Bus) attach(ctx context.Context, s *Store) error {
	err := b.client.Subscribe(b.topics.AllSets(), b.qos, func(topic string, payload []byte) error {
		id, ok := b.topics.SetKey(topic)
		if !ok {
			return nil
		}
		val, ack, err := decodeSetPayload(payload)
		if err != nil {
			return fmt.Errorf("set %s: %w", id, err)
		}
		return s.setState(ctx, id, val, ack, "mqtt")
	})
	if err != nil {
		return err
	}

	return b.client.Subscribe(b.topics.AllObjects(), b.qos, func(topic string, payload []byte) error {
		id, ok := b.topics.ObjectKey(topic)
		if !ok {
			return nil
		}
		if len(bytes.TrimSpace(payload)) == 0 {
			return s.DeleteObject(ctx, id)
		}
		var patch map[string]any
		if err := json.Unmarshal(payload, &patch); err != nil {
			return fmt.Errorf("object %s: %w: %w", id, ErrInvalidValue, err)
		}
		_, err := s.ExtendObject(ctx, id, patch)
		return err
	})
}

func (b *Bus) publishState(id string, st *State) {
	if !mqtt.ValidKey(id) {
		return
	}
	payload, err := json.Marshal(busState{
		Val:  st.Val,
		Ack:  st.Ack,
		TS:   st.TS.Format(time.RFC3339Nano),
		From: st.From,
	})
	if err != nil {
		b.logger.Warn("encoding state for bus failed", "id", id, "error", err)
		return
	}
	if err := b.client.Publish(b.topics.State(id), payload, b.qos, true); err != nil {
		b.logger.Warn("publishing state failed", "id", id, "error", err)
	}
}

// clearState removes the retained message of a deleted key.
func (b *Bus) clearState(id string) {
	if !mqtt.ValidKey(id) {
		return
	}
	if err := b.client.Publish(b.topics.State(id), nil, b.qos, true); err != nil {
		b.logger.Warn("clearing retained state failed", "id", id, "error", err)
	}
}

// decodeSetPayload accepts {"val": x, "ack": bool}, a bare JSON value, or
// plain text. Plain text is taken as a string value.
func decodeSetPayload(payload []byte) (val any, ack bool, err error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("%w: empty payload", ErrInvalidValue)
	}

	if trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if raw, ok := envelope["val"]; ok {
				if err := json.Unmarshal(raw, &val); err != nil {
					return nil, false, fmt.Errorf("%w: %w", ErrInvalidValue, err)
				}
				if rawAck, ok := envelope["ack"]; ok {
					if err := json.Unmarshal(rawAck, &ack); err != nil {
						return nil, false, fmt.Errorf("%w: ack: %w", ErrInvalidValue, err)
					}
				}
				return val, ack, nil
			}
		}
	}

	if err := json.Unmarshal(trimmed, &val); err != nil {
		return string(trimmed), false, nil
	}
	return val, false, nil
}
