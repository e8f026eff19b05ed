package fakedetect

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// DecodeEXIF extracts the signals the aggregator cares about from a raw EXIF
// blob shipped inside an analyzer payload. A blob that fails to decode
// yields a signal without EXIF rather than an error: absence of usable
// metadata is itself a signal.
func DecodeEXIF(raw []byte) ImageSignal {
	if len(raw) == 0 {
		return ImageSignal{}
	}

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return ImageSignal{}
	}

	signal := ImageSignal{HasEXIF: true}

	if lat, lon, err := x.LatLong(); err == nil {
		signal.Latitude = &lat
		signal.Longitude = &lon
	}
	if tm, err := x.DateTime(); err == nil {
		signal.CapturedAt = &tm
	}
	if tag, err := x.Get(exif.Software); err == nil {
		if software, err := tag.StringVal(); err == nil {
			signal.Software = software
		}
	}
	return signal
}
