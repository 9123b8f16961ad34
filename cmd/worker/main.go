package main

import (
	"os"

	"github.com/himawari-tools/line-secretary/internal/workerservice"
)

func main() {
	if err := workerservice.Run(); err != nil {
		os.Exit(1)
	}
}
