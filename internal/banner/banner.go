package banner

import (
	"leakcheck/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
 _            _        _               _    
| | ___  __ _| | _____| |__   ___  ___| | __
| |/ _ \/ _' | |/ / __| '_ \ / _ \/ __| |/ /
| |  __/ (_| |   < (__| | | |  __/ (__|   < 
|_|\___|\__,_|_|\_\___|_| |_|\___|\___|_|\_\`

	return "\n" + style.Render(ascii) + "\n"
}
