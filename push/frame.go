package push

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// Frame field numbers.
const (
	frameFieldName    protowire.Number = 1
	frameFieldPayload protowire.Number = 2
)

// ErrMissingEventName is returned when a frame carries no event name.
var ErrMissingEventName = errors.New("push: frame without event name")

// EncodeFrame serializes ev as a protobuf-wire envelope {1: name, 2: payload}.
func EncodeFrame(ev Event) []byte {
	b := make([]byte, 0, len(ev.Name)+len(ev.Payload)+8)
	b = protowire.AppendTag(b, frameFieldName, protowire.BytesType)
	b = protowire.AppendString(b, ev.Name)
	b = protowire.AppendTag(b, frameFieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, ev.Payload)
	return b
}

// DecodeFrame parses a frame produced by EncodeFrame. Unknown fields are skipped.
func DecodeFrame(b []byte) (Event, error) {
	var ev Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Event{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == frameFieldName && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Event{}, protowire.ParseError(m)
			}
			ev.Name = v
			b = b[m:]
		case num == frameFieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Event{}, protowire.ParseError(m)
			}
			ev.Payload = append([]byte(nil), v...)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Event{}, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	if ev.Name == "" {
		return Event{}, ErrMissingEventName
	}
	return ev, nil
}
