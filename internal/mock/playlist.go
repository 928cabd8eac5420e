package mock

// Track is one now-playing payload as the feed sends it.
type Track struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	AlbumArt string `json:"albumart,omitempty"`
}

// DefaultPlaylist is rotated by the mock feed when no playlist is configured.
var DefaultPlaylist = []Track{
	{
		Title:    "Bad Apple!! feat. nomico",
		Artist:   "Alstroemeria Records",
		Album:    "Lovelight",
		AlbumArt: "https://gensokyoradio.net/images/albums/500/1.jpg",
	},
	{
		Title:    "Necrofantasia",
		Artist:   "IOSYS",
		Album:    "Touhou Bakuyu Hakurei",
		AlbumArt: "https://gensokyoradio.net/images/albums/500/2.jpg",
	},
	{
		Title:  "Septette for the Dead Princess",
		Artist: "TAMUSIC",
		Album:  "Scarlet Devil",
	},
	{
		Title:    "Night of Nights",
		Artist:   "COOL&CREATE",
		Album:    "Flowering Night",
		AlbumArt: "https://gensokyoradio.net/images/albums/500/4.jpg",
	},
	{
		Title:  "Border of Life",
		Artist: "Demetori",
	},
}
