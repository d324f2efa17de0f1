package instruments

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// CardStatusChanged field numbers.
const (
	fieldCardStatus protowire.Number = 1
	fieldCard       protowire.Number = 2
)

// Card field numbers.
const (
	fieldCardUUID  protowire.Number = 1
	fieldLast4     protowire.Number = 2
	fieldBrand     protowire.Number = 3
	fieldIsPrimary protowire.Number = 4
	fieldExpMonth  protowire.Number = 5
	fieldExpYear   protowire.Number = 6
)

// ErrMalformedEvent wraps wire-format decode failures.
var ErrMalformedEvent = errors.New("instruments: malformed card status event")

// CardStatusChanged is the decoded push payload.
type CardStatusChanged struct {
	Status Status
	Card   *Instrument
}

// MarshalCardStatusChanged encodes ev in protobuf wire format.
func MarshalCardStatusChanged(ev CardStatusChanged) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCardStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Status))
	if ev.Card != nil {
		b = protowire.AppendTag(b, fieldCard, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalCard(*ev.Card))
	}
	return b
}

func marshalCard(c Instrument) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCardUUID, protowire.BytesType)
	b = protowire.AppendString(b, c.ID)
	b = protowire.AppendTag(b, fieldLast4, protowire.BytesType)
	b = protowire.AppendString(b, c.Last4)
	if c.Brand != "" {
		b = protowire.AppendTag(b, fieldBrand, protowire.BytesType)
		b = protowire.AppendString(b, c.Brand)
	}
	if c.IsPrimary {
		b = protowire.AppendTag(b, fieldIsPrimary, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if c.ExpMonth != 0 {
		b = protowire.AppendTag(b, fieldExpMonth, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.ExpMonth))
	}
	if c.ExpYear != 0 {
		b = protowire.AppendTag(b, fieldExpYear, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.ExpYear))
	}
	return b
}

// UnmarshalCardStatusChanged decodes a push payload.
func UnmarshalCardStatusChanged(b []byte) (CardStatusChanged, error) {
	var ev CardStatusChanged
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == fieldCardStatus && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			ev.Status = Status(x)
			return n, nil
		case num == fieldCard && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			card, err := unmarshalCard(raw)
			if err != nil {
				return 0, err
			}
			ev.Card = &card
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, v), nil
	})
	if err != nil {
		return CardStatusChanged{}, err
	}
	if ev.Card != nil {
		// status may follow the card on the wire
		ev.Card.Status = ev.Status
	}
	return ev, nil
}

func unmarshalCard(b []byte) (Instrument, error) {
	var c Instrument
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case typ == protowire.BytesType && (num == fieldCardUUID || num == fieldLast4 || num == fieldBrand):
			s, n := protowire.ConsumeString(v)
			switch num {
			case fieldCardUUID:
				c.ID = s
			case fieldLast4:
				c.Last4 = s
			default:
				c.Brand = s
			}
			return n, nil
		case typ == protowire.VarintType && (num == fieldIsPrimary || num == fieldExpMonth || num == fieldExpYear):
			x, n := protowire.ConsumeVarint(v)
			switch num {
			case fieldIsPrimary:
				c.IsPrimary = protowire.DecodeBool(x)
			case fieldExpMonth:
				c.ExpMonth = int(x)
			default:
				c.ExpYear = int(x)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, v), nil
	})
	return c, err
}

// walk iterates over top-level fields. visit returns the number of value
// bytes it consumed (negative on a wire error).
func walk(b []byte, visit func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Join(ErrMalformedEvent, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return errors.Join(ErrMalformedEvent, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}
