package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide explains how to copy the labs.google cookie
func ShowCookieExtractionGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "IMAGEFX COOKIE GUIDE")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "fxarchive reads your ImageFX history with your browser session.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://labs.google/fx/tools/image-fx and sign in.")
	fmt.Fprintln(w, "2. Open Developer Tools (F12, or Cmd+Option+I on macOS).")
	fmt.Fprintln(w, "3. Go to the Network tab and reload the page.")
	fmt.Fprintln(w, "4. Click any request to labs.google and open its Request Headers.")
	fmt.Fprintln(w, "5. Copy the whole value of the 'Cookie' header.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Copy every field. A partial cookie string is rejected by the service")
	fmt.Fprintln(w, "with 401 or 403 and downloads fail.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The cookie grants access to your Google Labs account. It is stored")
	fmt.Fprintln(w, "in the system keychain or an encrypted file. Never share it.")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Network > reload > any labs.google request > Request Headers > Cookie")
}
