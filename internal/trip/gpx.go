package trip

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"
)

const gpxCreator = "TapuTapu"

// GPX renders a trip as a GPX 1.1 document with a single track segment.
func GPX(t Trip) ([]byte, error) {
	if len(t.Path) == 0 {
		return nil, ErrTooShort
	}
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("%s trip %s", t.Mode, t.RecordedAt.Format("2006-01-02"))
	}

	seg := gpx.GPXTrackSegment{Points: make([]gpx.GPXPoint, 0, len(t.Path))}
	for _, p := range t.Path {
		seg.Points = append(seg.Points, gpx.GPXPoint{
			Point: gpx.Point{Latitude: p.Lat, Longitude: p.Lng},
		})
	}
	doc := gpx.GPX{
		Creator: gpxCreator,
		Name:    name,
		Time:    &t.RecordedAt,
		Tracks: []gpx.GPXTrack{{
			Name:     name,
			Type:     string(t.Mode),
			Segments: []gpx.GPXTrackSegment{seg},
		}},
	}
	return doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}
