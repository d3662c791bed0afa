package avtransport

import (
	"fmt"
	"strings"
)

const didlVideoTitle = "dlnacast Video"

// MediaItem describes one playable item for metadata purposes.
type MediaItem struct {
	VideoURL     string
	VideoType    string // bare extension, e.g. "mp4"
	SubtitleURL  string // empty when no subtitle is served
	SubtitleType string // bare extension, e.g. "srt"
}

// BuildMetadata renders the DIDL-Lite item description sent along with
// SetAVTransportURI. Without a subtitle the metadata is empty: renderers
// accept a bare URI and some choke on minimal DIDL. With a subtitle the
// caption is announced through every vendor channel in common use
// (pv:subtitleFileUri, plain res entries, sec:CaptionInfo/CaptionInfoEx) so
// Samsung, LG and Kodi-class renderers all pick it up.
func BuildMetadata(item MediaItem) string {
	if item.SubtitleURL == "" {
		return ""
	}

	videoType := item.VideoType
	if videoType == "" {
		videoType = "mp4"
	}
	subType := item.SubtitleType
	if subType == "" {
		subType = "srt"
	}

	var b strings.Builder
	b.WriteString(`<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/"` +
		` xmlns:dlna="urn:schemas-dlna-org:metadata-1-0/"` +
		` xmlns:sec="http://www.sec.co.kr/"` +
		` xmlns:pv="http://www.pv.com/pvns/">`)
	b.WriteString(`<item id="0" parentID="-1" restricted="1">`)
	fmt.Fprintf(&b, `<dc:title>%s</dc:title>`, escapeXML(didlVideoTitle))
	fmt.Fprintf(&b,
		`<res protocolInfo="http-get:*:video/%s:" pv:subtitleFileUri="%s" pv:subtitleFileType="%s">%s</res>`,
		escapeXML(videoType), escapeXML(item.SubtitleURL), escapeXML(subType), escapeXML(item.VideoURL))
	fmt.Fprintf(&b, `<res protocolInfo="http-get:*:text/srt:*">%s</res>`, escapeXML(item.SubtitleURL))
	fmt.Fprintf(&b, `<res protocolInfo="http-get:*:smi/caption:*">%s</res>`, escapeXML(item.SubtitleURL))
	fmt.Fprintf(&b, `<sec:CaptionInfoEx sec:type="%s">%s</sec:CaptionInfoEx>`,
		escapeXML(subType), escapeXML(item.SubtitleURL))
	fmt.Fprintf(&b, `<sec:CaptionInfo sec:type="%s">%s</sec:CaptionInfo>`,
		escapeXML(subType), escapeXML(item.SubtitleURL))
	b.WriteString(`<upnp:class>object.item.videoItem.movie</upnp:class>`)
	b.WriteString(`</item></DIDL-Lite>`)
	return b.String()
}
