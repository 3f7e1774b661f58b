package signal

import "encoding/json"

type MessageType string

const (
	MsgSignal MessageType = "signal"
)

// Message is the envelope written to the peer once per tick.
type Message struct {
	Type    MessageType `json:"type"`
	Name    string      `json:"name"`
	Seq     uint64      `json:"seq"`
	Payload any         `json:"payload"`
}

// Encoder serializes one state snapshot into a wire message.
type Encoder interface {
	Encode(name string, seq uint64, state any) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(name string, seq uint64, state any) ([]byte, error)

func (f EncoderFunc) Encode(name string, seq uint64, state any) ([]byte, error) {
	return f(name, seq, state)
}

// JSONEncoder writes the Message envelope as JSON.
type JSONEncoder struct{}

func (JSONEncoder) Encode(name string, seq uint64, state any) ([]byte, error) {
	return json.Marshal(Message{
		Type:    MsgSignal,
		Name:    name,
		Seq:     seq,
		Payload: state,
	})
}

// PayloadEncoder writes the bare state as JSON, without the envelope.
type PayloadEncoder struct{}

func (PayloadEncoder) Encode(_ string, _ uint64, state any) ([]byte, error) {
	return json.Marshal(state)
}
