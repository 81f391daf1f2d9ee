package bot

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	regionalIndicatorBase = 0x1F1E6 // 🇦
	regionalIndicatorLast = 0x1F1FF // 🇿
)

// countryFromFlag resolves a flag emoji (two regional-indicator runes) to
// its English country name, or "" when emoji is not a flag or the region is
// unknown. The country-joke prompt translates the name into the user's
// language itself, so English is fine here.
func countryFromFlag(emoji string) string {
	runes := []rune(emoji)
	if len(runes) != 2 {
		return ""
	}
	var code [2]byte
	for i, r := range runes {
		if r < regionalIndicatorBase || r > regionalIndicatorLast {
			return ""
		}
		code[i] = byte('A' + (r - regionalIndicatorBase))
	}

	region, err := language.ParseRegion(string(code[:]))
	if err != nil {
		return ""
	}
	return display.Regions(language.English).Name(region)
}
