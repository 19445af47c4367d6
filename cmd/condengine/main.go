// Command condengine evaluates strategy condition trees against live
// candles and publishes every verdict to Redis.
//
// Configuration comes from the environment, optionally layered over the
// YAML file named by CONFIG_FILE.
package main

import (
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.NopLogger,
		configModule(),
		storageModule(),
		engineModule(),
		httpModule(),
	).Run()
}
