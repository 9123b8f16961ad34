package main

import (
	"os"

	"github.com/himawari-tools/line-secretary/internal/liffapi"
)

func main() {
	if err := liffapi.Run(); err != nil {
		os.Exit(1)
	}
}
