package profile

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// DefaultChromeMajor is the Chrome release generated user agents claim.
const DefaultChromeMajor = 131

var windowsPlatforms = []string{
	"Windows NT 10.0; Win64; x64",
	"Windows NT 10.0",
	"Windows NT 6.1; Win64; x64",
	"Windows NT 6.1",
	"Windows NT 6.3; Win64; x64",
}

var (
	chromeVersion = regexp.MustCompile(`Chrome/((\d+)\.\d+\.\d+\.\d+)`)
	windowsNT     = regexp.MustCompile(`Windows NT (\d+)\.(\d+)`)
	macOSX        = regexp.MustCompile(`Mac OS X (\d+)[_.](\d+)(?:[_.](\d+))?`)
)

// ClientHints is what navigator.userAgentData and the Sec-CH-UA headers
// report for a user agent string.
type ClientHints struct {
	Major           string
	FullVersion     string
	Platform        string
	PlatformVersion string
	Architecture    string
	Bitness         string

	// NavigatorPlatform is the legacy navigator.platform value.
	NavigatorPlatform string
}

// ClientHints derives the client hints matching p.UserAgent. It reports
// false when the profile has no user agent or it is not a desktop Chrome one.
func (p *Profile) ClientHints() (ClientHints, bool) {
	ua := p.UserAgent
	m := chromeVersion.FindStringSubmatch(ua)
	if m == nil {
		return ClientHints{}, false
	}

	h := ClientHints{
		Major:        m[2],
		FullVersion:  m[1],
		Architecture: "x86",
		Bitness:      "64",
	}

	if w := windowsNT.FindStringSubmatch(ua); w != nil {
		h.Platform = "Windows"
		h.NavigatorPlatform = "Win32"
		h.PlatformVersion = windowsPlatformVersion(w[1], w[2])
		if !strings.Contains(ua, "Win64") && !strings.Contains(ua, "WOW64") {
			h.Bitness = "32"
		}
		return h, true
	}
	if mac := macOSX.FindStringSubmatch(ua); mac != nil {
		patch := mac[3]
		if patch == "" {
			patch = "0"
		}
		h.Platform = "macOS"
		h.NavigatorPlatform = "MacIntel"
		h.PlatformVersion = fmt.Sprintf("%s.%s.%s", mac[1], mac[2], patch)
		return h, true
	}
	if strings.Contains(ua, "Linux") && !strings.Contains(ua, "Android") {
		h.Platform = "Linux"
		h.NavigatorPlatform = "Linux x86_64"
		return h, true
	}
	return ClientHints{}, false
}

// windowsPlatformVersion maps an NT version to the one Chrome reports. Before
// Windows 10 only the minor number is carried.
func windowsPlatformVersion(major, minor string) string {
	if major == "6" {
		return "0." + minor + ".0"
	}
	return major + ".0.0"
}

func generateUserAgent(r *rand.Rand) string {
	platform := windowsPlatforms[r.IntN(len(windowsPlatforms))]
	return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Safari/537.36",
		platform, DefaultChromeMajor, 1000+r.IntN(9000), r.IntN(151))
}
