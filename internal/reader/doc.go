// Package reader turns the byte stream of an RFID reader into tag events.
//
// A Decoder recognises frames delimited by the markers of an rfid.Profile,
// validates their length and checksum and yields either a tag event or a
// diagnostic. A RateLimiter drops repeated reads of the same tag inside a
// cooldown window. Reader drives both from a blocking byte source and hands
// the results to a Handler, all on the caller's goroutine.
package reader
