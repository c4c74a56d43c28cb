package main

import (
	"os"

	"github.com/moneyocr/moneyocr/cmd/moneyocr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
