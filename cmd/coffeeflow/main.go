// Command coffeeflow runs the coffee-credit Telegram bot built on tg-flow.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
