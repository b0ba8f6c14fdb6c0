package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner followed by the listen address
func PrintBanner(config *Config) {
	banner.PrintSimple("Slidegen", GetVersion())
	fmt.Printf("  listening on http://%s:%d  (producers: %s)\n\n",
		config.Server.Host, config.Server.Port, config.Producers.Mode)
}
