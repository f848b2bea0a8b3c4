package main

import (
	"os"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
