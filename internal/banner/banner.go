package banner

import (
	"github.com/charmbracelet/lipgloss"

	"apiscope/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
   ____ _____  (_)_____________  ____  ___ 
  / __ '/ __ \/ / ___/ ___/ __ \/ __ \/ _ \
 / /_/ / /_/ / (__  ) /__/ /_/ / /_/ /  __/
 \__,_/ .___/_/____/\___/\____/ .___/\___/ 
     /_/                     /_/           `

	tagline := renderer.NewStyle().Foreground(styles.ColorSubtle).Render("REST vs GraphQL, side by side")
	return "\n" + style.Render(ascii) + "\n " + tagline + "\n"
}
