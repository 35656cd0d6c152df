package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// vidioTheme задаёт светлую палитру с фиолетово-синими акцентами бренда.
type vidioTheme struct {
	base fyne.Theme
}

func newVidioTheme() fyne.Theme {
	return &vidioTheme{base: theme.DefaultTheme()}
}

func (t *vidioTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 124, G: 58, B: 237, A: 255}
	case theme.ColorNameHyperlink:
		return color.NRGBA{R: 37, G: 99, B: 235, A: 255}
	case theme.ColorNameError:
		return color.NRGBA{R: 220, G: 38, B: 38, A: 255}
	case theme.ColorNameSuccess:
		return color.NRGBA{R: 34, G: 197, B: 94, A: 255}
	}
	if variant == theme.VariantDark {
		return t.base.Color(name, variant)
	}
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 248, G: 247, B: 252, A: 255}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 15, G: 23, B: 42, A: 255}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	default:
		return t.base.Color(name, variant)
	}
}

func (t *vidioTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *vidioTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *vidioTheme) Size(name fyne.ThemeSizeName) float32 {
	return t.base.Size(name)
}
