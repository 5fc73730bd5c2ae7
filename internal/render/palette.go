package render

var (
	defaultPalette = []rune("  .,:-;+=*%#@▓▒░█")
	boxPalette     = []rune(" ░▒▓█")
	linesPalette   = []rune(" `.-=+*/\\|╱╲╳")
	sparkPalette   = []rune("  ´`^\"~:;*+×•¤°oO@#█")
)

// Palette returns characters used for brightness mapping, darkest first.
func Palette(name string) []rune {
	switch name {
	case "box":
		return boxPalette
	case "lines":
		return linesPalette
	case "spark":
		return sparkPalette
	default:
		return defaultPalette
	}
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	return []string{"default", "box", "lines", "spark"}
}

func validPalette(name string) bool {
	for _, n := range PaletteNames() {
		if n == name {
			return true
		}
	}
	return false
}

// glyph picks the palette rune for a luminance in [0,1].
func glyph(palette []rune, lum float64) rune {
	i := clampInt(int(lum*float64(len(palette)-1)+0.5), 0, len(palette)-1)
	return palette[i]
}
