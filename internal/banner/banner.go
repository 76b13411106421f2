package banner

import (
	"hstress/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
    __              __
   / /_  __________/ /_________  __________
  / __ \/ ___/ ___/ __/ ___/ _ \/ ___/ ___/
 / / / (__  |__  ) /_/ /  /  __(__  |__  )
/_/ /_/____/____/\__/_/   \___/____/____/  `

// GetString renders the banner shown above the usage text. Color is dropped
// when the renderer detects no color support.
func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
