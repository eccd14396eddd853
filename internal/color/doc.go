// Package color holds the console styles used by matrixctl.
//
// Styles are built with lipgloss and adapt to dark or light terminals.
// Colour output is disabled when:
//   - NO_COLOR is set
//   - TERM is "dumb"
//   - the user passes --no-color
//
// When disabled, Render returns its input untouched so that output stays
// byte for byte comparable in tests and CI logs.
//
// # Usage Example
//
//	color.Initialize(true)
//	fmt.Println(color.Render(color.BannerStyle, "FAIL"))
//
// # Environment Variables
//
//   - NO_COLOR: disable all colour output
//   - TERM: "dumb" disables colour output
//   - MATRIXCTL_THEME: force "dark" or "light"
package color
