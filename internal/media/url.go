package media

import (
	"fmt"
	"net/url"
	"strings"
)

// ExtractVideoID pulls the video ID out of a YouTube-style URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/v/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func ExtractVideoID(source string) (string, error) {
	parsedURL, err := url.Parse(source)
	if err != nil {
		return "", err
	}

	var id string
	switch parsedURL.Hostname() {
	case "youtube.com":
		fallthrough
	case "www.youtube.com":
		fallthrough
	case "m.youtube.com":
		if strings.HasPrefix(parsedURL.Path, "/v/") {
			id = strings.SplitN(parsedURL.Path, "/", 3)[2]
		} else if parsedURL.Path == "/watch" || parsedURL.Path == "/details" {
			if parsedURL.Query().Has("v") {
				id = parsedURL.Query().Get("v")
			} else {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
		}
	case "youtu.be":
		id = strings.Trim(parsedURL.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname %s", parsedURL.Hostname())
	}

	if id == "" {
		return "", fmt.Errorf("could not extract video ID from %s", source)
	}

	return id, nil
}
