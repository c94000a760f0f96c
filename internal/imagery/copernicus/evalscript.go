package copernicus

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/burnsev/internal/sensor"
)

// dataset describes how a sensor is exposed by the Copernicus Data Space process API.
type dataset struct {
	Type   string
	QAIn   string
	QAExpr string
}

// The process API serves Level-2 products. Their scene classification is re-encoded
// into the bit layout the masking stage decodes: QA60 bits 10/11 for Sentinel-2 and
// collection 1 pixel_qa bits 3/4/5 for Landsat 8.
var datasets = map[sensor.ID]dataset{
	sensor.S2: {
		Type: "sentinel-2-l2a",
		QAIn: "SCL",
		QAExpr: `  var v = 0;
  if (sample.SCL == 8 || sample.SCL == 9) v += 1024;
  if (sample.SCL == 10) v += 2048;
  return v;`,
	},
	sensor.L8: {
		Type: "landsat-ot-l2",
		QAIn: "BQA",
		QAExpr: `  var v = 0;
  if ((sample.BQA >> 4) & 1) v += 8;
  if ((sample.BQA >> 5) & 1) v += 16;
  if ((sample.BQA >> 3) & 1) v += 32;
  return v;`,
	},
}

// remoteBand converts a channel id to the process API band name, zero padding single
// digit bands: B2 becomes B02, B8A stays B8A.
func remoteBand(channel string) string {
	digits := strings.TrimPrefix(channel, "B")
	if len(digits) == 1 && digits[0] >= '0' && digits[0] <= '9' {
		return "B0" + digits
	}
	return channel
}

func evalscript(id sensor.ID, channels []string) (string, error) {
	ds, ok := datasets[id]
	if !ok {
		return "", fmt.Errorf("%w: %s is not served by the process API", sensor.ErrUnknownSensor, id)
	}

	inputs := make([]string, 0, len(channels)+2)
	samples := make([]string, 0, len(channels)+1)
	for _, c := range channels {
		inputs = append(inputs, fmt.Sprintf("%q", remoteBand(c)))
		samples = append(samples, "sample."+remoteBand(c))
	}
	inputs = append(inputs, fmt.Sprintf("%q", ds.QAIn), `"dataMask"`)
	samples = append(samples, "qa(sample)")

	nan := make([]string, len(channels)+1)
	for i := range nan {
		nan[i] = "NaN"
	}

	return fmt.Sprintf(`//VERSION=3
function setup() {
  return {
    input: [%s],
    output: {
      id: "default",
      bands: %d,
      sampleType: SampleType.FLOAT32,
    },
  }
}

function qa(sample) {
%s
}

function evaluatePixel(sample) {
  if (sample.dataMask == 0) {
    return [%s];
  }
  return [%s];
}
`, strings.Join(inputs, ", "), len(channels)+1, ds.QAExpr, strings.Join(nan, ", "), strings.Join(samples, ", ")), nil
}
