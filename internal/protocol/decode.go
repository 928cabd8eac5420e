package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// nowPlayingWire mirrors the feed's metadata object. encoding/json matches
// keys case-insensitively, so "albumArt" lands in AlbumArt as well.
type nowPlayingWire struct {
	Title    lenientString `json:"title"`
	Artist   lenientString `json:"artist"`
	Album    lenientString `json:"album"`
	AlbumArt lenientString `json:"albumart"`
}

// lenientString decodes null to "" and keeps numbers and booleans as their
// literal text. Objects and arrays are errors.
type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = lenientString(v)
		return nil
	case '{', '[':
		return fmt.Errorf("expected a string, got %s", data[:1])
	default:
		*s = lenientString(data)
		return nil
	}
}

// DecodeNowPlaying decodes a now-playing payload. Every absent or null field
// becomes an empty string.
func DecodeNowPlaying(text string) (NowPlayingRecord, error) {
	var w nowPlayingWire
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return NowPlayingRecord{}, fmt.Errorf("decoding now-playing: %w", err)
	}
	return NowPlayingRecord{
		Title:       string(w.Title),
		Artist:      string(w.Artist),
		Album:       string(w.Album),
		CoverArtURL: string(w.AlbumArt),
	}, nil
}
