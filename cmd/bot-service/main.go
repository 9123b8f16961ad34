package main

import (
	"os"

	"github.com/himawari-tools/line-secretary/internal/botservice"
)

func main() {
	if err := botservice.Run(); err != nil {
		os.Exit(1)
	}
}
