// Package event defines the stream payload model and its wire codecs.
//
// An Event is a string-keyed mapping that remembers insertion order. Values
// are one of null, bool, number, string, list or nested object. Codecs turn an
// Event into the bytes stored in a log entry and back:
//
//	ev := event.New(
//	    event.F("timestamp", event.Int(1700000000000)),
//	    event.F("price", event.Number(101.5)),
//	)
//	b, err := event.JSONCodec{}.Encode(ev)
//	back, err := event.JSONCodec{}.Decode(b)
//
// Encode fails with *EncodingError and Decode with *DecodingError.
package event
