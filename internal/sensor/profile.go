package sensor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Profile is selected once at configuration time and passed explicitly to every stage.
type Profile struct {
	ID   ID
	Name string
	// Collection is the catalog identifier used by the imagery source.
	Collection string
	// QABand names the bit-encoded quality channel.
	QABand string
	// ExportScale is the export resolution in metres per pixel.
	ExportScale float64
	// TrueColorMax is the upper stretch bound for RGB previews of mosaics.
	TrueColorMax float64

	bands    map[Band]string
	qaDecode func(qa uint16) bool
}

var profiles = map[ID]*Profile{
	L8: {
		ID:           L8,
		Name:         "Landsat 8",
		Collection:   "LANDSAT/LC08/C01/T1_SR",
		QABand:       "pixel_qa",
		ExportScale:  30,
		TrueColorMax: 4000,
		bands:        landsat8Bands,
		qaDecode:     landsat8Clear,
	},
	S2: {
		ID:           S2,
		Name:         "Sentinel-2",
		Collection:   "COPERNICUS/S2",
		QABand:       "QA60",
		ExportScale:  20,
		TrueColorMax: 2000,
		bands:        sentinel2Bands,
		qaDecode:     sentinel2Clear,
	},
}

func Lookup(id ID) (*Profile, error) {
	profile, ok := profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, id)
	}
	return profile, nil
}

// Profiles lists the built-in sensors in a stable order.
func Profiles() []*Profile {
	list := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (p *Profile) Resolve(band Band) (string, error) {
	channel, ok := p.bands[band]
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s band", ErrUnknownBand, p.Name, band)
	}
	return channel, nil
}

// Bands returns the semantic bands of the sensor sorted by channel id.
func (p *Profile) Bands() []Band {
	bands := make([]Band, 0, len(p.bands))
	for b := range p.bands {
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool {
		return channelOrder(p.bands[bands[i]]) < channelOrder(p.bands[bands[j]])
	})
	return bands
}

// Channels lists the channel ids of the sensor in band order (B1, B2, ... B8A, ...).
func (p *Profile) Channels() []string {
	var channels []string
	for _, b := range p.Bands() {
		channels = append(channels, p.bands[b])
	}
	return channels
}

func channelOrder(channel string) float64 {
	digits := strings.TrimLeft(channel, "B")
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(digits[:end])
	if end < len(digits) {
		return float64(n) + 0.5
	}
	return float64(n)
}

func (p *Profile) String() string {
	return string(p.ID)
}
