package main

import (
	"os"

	"github.com/TMG-AI/tara-dashboard/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
