// Package sensor describes the supported satellite sensors: which channel carries each
// semantic band, how the QA channel is decoded and how products are exported.
package sensor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSensor = errors.New("unknown sensor")
	ErrUnknownBand   = errors.New("unknown band")
)

type ID string

const (
	L8 ID = "L8"
	S2 ID = "S2"
)

// Band is a sensor-agnostic band name.
type Band string

const (
	Aerosol    Band = "AEROSOL"
	Blue       Band = "BLUE"
	Green      Band = "GREEN"
	Red        Band = "RED"
	RedEdge1   Band = "REDE1"
	RedEdge2   Band = "REDE2"
	RedEdge3   Band = "REDE3"
	RedEdge4   Band = "REDE4"
	NIR        Band = "NIR"
	WaterVapor Band = "WATERVAPOR"
	SWIR1      Band = "SWIR1"
	SWIR2      Band = "SWIR2"
	Pan        Band = "PAN"
	Cirrus     Band = "CIRRUS"
	TIR1       Band = "TIR1"
	TIR2       Band = "TIR2"
)

var landsat8Bands = map[Band]string{
	Aerosol: "B1",
	Blue:    "B2",
	Green:   "B3",
	Red:     "B4",
	NIR:     "B5",
	SWIR1:   "B6",
	SWIR2:   "B7",
	Pan:     "B8",
	Cirrus:  "B9",
	TIR1:    "B10",
	TIR2:    "B11",
}

var sentinel2Bands = map[Band]string{
	Blue:       "B2",
	Green:      "B3",
	Red:        "B4",
	RedEdge1:   "B5",
	RedEdge2:   "B6",
	RedEdge3:   "B7",
	NIR:        "B8",
	RedEdge4:   "B8A",
	WaterVapor: "B9",
	SWIR1:      "B11",
	SWIR2:      "B12",
}

// ParseID accepts the sensor codes used in pipeline definitions, case-insensitively.
func ParseID(s string) (ID, error) {
	switch ID(strings.ToUpper(strings.TrimSpace(s))) {
	case L8:
		return L8, nil
	case S2:
		return S2, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSensor, s)
}

// Resolve maps a semantic band to the channel id of the given sensor.
func Resolve(id ID, band Band) (string, error) {
	profile, err := Lookup(id)
	if err != nil {
		return "", err
	}
	return profile.Resolve(band)
}
