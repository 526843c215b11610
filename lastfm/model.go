package lastfm

import "encoding/xml"

type (
	LastFM struct {
		XMLName xml.Name `xml:"lfm"`
		Status  string   `xml:"status,attr"`
		Error   Error    `xml:"error"`
		Album   Album    `xml:"album"`
	}

	Error struct {
		Code  uint   `xml:"code,attr"`
		Value string `xml:",chardata"`
	}

	Image struct {
		Text string `xml:",chardata"`
		Size string `xml:"size,attr"`
	}

	Album struct {
		XMLName   xml.Name `xml:"album"`
		Name      string   `xml:"name"`
		Artist    string   `xml:"artist"`
		MBID      string   `xml:"mbid"`
		URL       string   `xml:"url"`
		Image     []Image  `xml:"image"`
		Listeners string   `xml:"listeners"`
		Playcount string   `xml:"playcount"`
	}
)

// BestImage returns the URL of the largest image present. last.fm lists
// sizes in ascending order, so that's the last entry with a URL.
func (a Album) BestImage() string {
	for i := len(a.Image) - 1; i >= 0; i-- {
		if a.Image[i].Text != "" {
			return a.Image[i].Text
		}
	}
	return ""
}
