package queue

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes queue messages for durable backends.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// JSONCodec encodes messages as JSON, which keeps them readable with
// redis-cli.
type JSONCodec struct{}

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// Encode marshals m as JSON.
func (JSONCodec) Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("queue: json encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals a JSON message.
func (JSONCodec) Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("queue: json decode: %w", err)
	}
	return m, nil
}

// MsgpackCodec encodes messages with MessagePack.
type MsgpackCodec struct{}

// Name returns "msgpack".
func (MsgpackCodec) Name() string { return "msgpack" }

// Encode marshals m with MessagePack.
func (MsgpackCodec) Encode(m Message) ([]byte, error) {
	data, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("queue: msgpack encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals a MessagePack message.
func (MsgpackCodec) Decode(data []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("queue: msgpack decode: %w", err)
	}
	return m, nil
}

// CodecByName returns the codec for "json" or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSONCodec{}, nil
	case "msgpack", "":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("queue: unknown codec %q", name)
}
