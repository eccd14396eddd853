package color

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	errorColor   = lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#FF5F5F"}
	warningColor = lipgloss.AdaptiveColor{Light: "#8A6D00", Dark: "#FFD75F"}
	successColor = lipgloss.AdaptiveColor{Light: "#1B7F3A", Dark: "#5FD787"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
	keyColor     = lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"}
)

var (
	// BannerStyle renders the failure banner.
	BannerStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	// KeyStyle renders configuration keys.
	KeyStyle = lipgloss.NewStyle().Foreground(keyColor)
	// ErrorStyle renders error diagnostics.
	ErrorStyle = lipgloss.NewStyle().Foreground(errorColor)
	// WarningStyle renders warning diagnostics.
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	// SuccessStyle renders the all passed summary.
	SuccessStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	// MutedStyle renders secondary text.
	MutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

var enabled atomic.Bool

func init() {
	enabled.Store(DetectEnabled())
}

// Initialize sets the background mode used to pick adaptive colours.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}

// InitializeFromEnv picks the theme from MATRIXCTL_THEME, falling back to
// the terminal's reported background.
func InitializeFromEnv() {
	switch os.Getenv("MATRIXCTL_THEME") {
	case "dark":
		Initialize(true)
	case "light":
		Initialize(false)
	}
}

// DetectEnabled reports whether the environment allows colour output.
func DetectEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// IsTerminal reports whether w is a terminal. Output redirected to a file or
// a pipe is not styled.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetEnabled turns colour output on or off.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Enabled reports whether Render applies styles.
func Enabled() bool {
	return enabled.Load()
}

// Render applies style to s when colour output is enabled.
func Render(style lipgloss.Style, s string) string {
	if !enabled.Load() {
		return s
	}
	return style.Render(s)
}
