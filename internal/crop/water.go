package crop

import "strings"

// DefaultWaterNeed is the soil moisture (%) assumed for crops missing from
// the water-need table.
const DefaultWaterNeed = 30.0

// waterNeeds is the required soil moisture percentage per crop.
var waterNeeds = map[string]float64{
	"rice":        80,
	"jute":        70,
	"sugarcane":   75,
	"banana":      70,
	"coconut":     65,
	"coffee":      60,
	"papaya":      60,
	"maize":       50,
	"cotton":      45,
	"watermelon":  55,
	"muskmelon":   50,
	"grapes":      45,
	"pomegranate": 40,
	"mango":       40,
	"apple":       45,
	"orange":      45,
	"wheat":       40,
	"pigeonpeas":  35,
	"mungbean":    35,
	"blackgram":   35,
	"lentil":      30,
	"mothbeans":   25,
	"kidneybeans": 35,
	"chickpea":    30,
}

// WaterNeed returns the required soil moisture for a crop, case-insensitive.
func WaterNeed(name string) float64 {
	if need, ok := waterNeeds[normalizeName(name)]; ok {
		return need
	}
	return DefaultWaterNeed
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
