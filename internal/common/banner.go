package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the runner banner
func PrintBanner(version string) {
	banner.PrintSimple("UITest", version)
}
