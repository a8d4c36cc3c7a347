// Command estimo trains, evaluates and serves the hybrid property-price
// model.
//
//	estimo train   --data houses.csv --target Price --models models/
//	estimo cv      --data houses.csv --target Price --model rf --folds 10
//	estimo predict --models models/ --features 85,3,2,1
//	estimo serve   --models models/ --addr :8080
//
// Settings are read from flags, ESTIMO_* environment variables and an
// optional config file (--config), in that order of precedence.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
