package protocol

import "testing"

func TestDecodeNowPlaying(t *testing.T) {
	tests := []struct {
		name string
		text string
		want NowPlayingRecord
	}{
		{
			name: "all fields",
			text: `{"title":"Bad Apple!!","artist":"Alstroemeria Records","album":"Lovelight","albumart":"https://example.org/a.jpg"}`,
			want: NowPlayingRecord{Title: "Bad Apple!!", Artist: "Alstroemeria Records", Album: "Lovelight", CoverArtURL: "https://example.org/a.jpg"},
		},
		{
			name: "missing album",
			text: `{"title":"Foo","artist":"Bar"}`,
			want: NowPlayingRecord{Title: "Foo", Artist: "Bar"},
		},
		{
			name: "null fields",
			text: `{"title":null,"artist":"Bar","album":null,"albumart":null}`,
			want: NowPlayingRecord{Artist: "Bar"},
		},
		{
			name: "camel case album art",
			text: `{"title":"Foo","albumArt":"https://example.org/b.png"}`,
			want: NowPlayingRecord{Title: "Foo", CoverArtURL: "https://example.org/b.png"},
		},
		{
			name: "numeric title kept as text",
			text: `{"title":1969,"album":true}`,
			want: NowPlayingRecord{Title: "1969", Album: "true"},
		},
		{
			name: "unknown fields ignored",
			text: `{"title":"Foo","duration":240,"played":12}`,
			want: NowPlayingRecord{Title: "Foo"},
		},
		{
			name: "empty object",
			text: `{}`,
			want: NowPlayingRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeNowPlaying(tt.text)
			if err != nil {
				t.Fatalf("DecodeNowPlaying: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeNowPlaying = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeNowPlayingRejectsNestedValues(t *testing.T) {
	for _, text := range []string{`{"title":{"x":1}}`, `{"artist":["a","b"]}`} {
		if _, err := DecodeNowPlaying(text); err == nil {
			t.Errorf("DecodeNowPlaying(%s) expected error", text)
		}
	}
}
