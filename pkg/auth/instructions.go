package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying the
// session cookie out of a browser
func ShowCookieExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FANTIA SESSION COOKIE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "fcsync signs in with the _session_id cookie of a logged-in browser.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Sign in")
	fmt.Fprintln(w, "   - Open https://fantia.jp and log in")
	fmt.Fprintln(w, "   - Check that your plans show up under My Page")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   - Chrome/Edge/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   - Safari: enable the Develop menu in Settings, then Cmd+Option+I")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Find the cookie")
	fmt.Fprintln(w, "   - Application tab (Chrome) or Storage tab (Firefox)")
	fmt.Fprintln(w, "   - Cookies > https://fantia.jp")
	fmt.Fprintln(w, "   - Copy the value of _session_id (a 64 character hex string)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TIPS:")
	fmt.Fprintln(w, "   - Copy only the value, without quotes or semicolons")
	fmt.Fprintln(w, "   - Logging out of the browser invalidates the cookie")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "WARNING: the cookie grants full access to your account. Never share it.")
	fmt.Fprintln(w, rule)
}

// ShowQuickExtractGuide writes a one-line reminder for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Application > Cookies > https://fantia.jp > copy _session_id")
}
