package main

import (
	"os"

	"github.com/romariotrain/reelwork/internal/app"
)

func main() {
	os.Exit(app.Run("reelwork", run))
}
