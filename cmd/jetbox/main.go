// Command jetbox brings up the Jetson development container.
package main

import (
	"os"

	"github.com/tsingmao/jetbox/cmd/jetbox/app"
	"github.com/tsingmao/jetbox/internal/logger"
)

func main() {
	if err := app.NewJetboxCommand().Execute(); err != nil {
		// Fatal conditions are reported once, timestamped, then exit 1.
		logger.Error("%v", err)
		os.Exit(1)
	}
}
