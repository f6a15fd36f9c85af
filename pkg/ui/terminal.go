package ui

import (
	"fmt"
	"io"
	"os"
)

// Logo is printed above interactive output
const Logo = `
   ___
  / __\___ ___ _   _ _ __   ___
 / _\/ __/ __| | | | '_ \ / __|
/ / | (__\__ \ |_| | | | | (__
\/   \___|___/\__, |_| |_|\___|
              |___/  fanclub sync
`

// Out receives every Print* line
var Out io.Writer = os.Stdout

// Dim renders secondary text such as timestamps
func Dim(text string) string {
	return dimStyle.Render(text)
}

func PrintLogo() {
	fmt.Fprint(Out, titleStyle.Render(Logo))
}

// PrintError prints msg in red, joined with its detail when one is given
func PrintError(msg string, detail ...string) {
	fmt.Fprintln(Out, errorStyle.Render(withDetail(msg, detail)))
}

func PrintWarning(msg string, detail ...string) {
	fmt.Fprintln(Out, warningStyle.Render(withDetail(msg, detail)))
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Out, successStyle.Render(msg))
}

// PrintInfo prints a "label: value" pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", titleStyle.Render(label), warningStyle.Render(value))
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Out, headerStyle.UnsetPadding().Render(msg))
}

func withDetail(msg string, detail []string) string {
	if len(detail) == 0 || detail[0] == "" {
		return msg
	}
	return msg + ": " + detail[0]
}
