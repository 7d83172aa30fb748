package banner

import (
	"agentq/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
                          __  ____ 
  ____ _____ ____  ____  / /_/ __ \
 / __ '/ __ '/ _ \/ __ \/ __/ / / /
/ /_/ / /_/ /  __/ / / / /_/ /_/ / 
\__,_/\__, /\___/_/ /_/\__/\___\_\ 
     /____/                        `

// GetString renders the banner for help output and the headless header.
func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)
	return "\n" + style.Render(ascii) + "\n"
}
