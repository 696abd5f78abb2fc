package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Not an error; production deployments configure through the
		// environment directly.
		log.Println("No .env file loaded")
	}

	a, err := InitializeApp()
	if err != nil {
		log.Fatalln(err)
	}
	parseConfig()
	a.Info("Starting application")
	if err := a.Run(); err != nil {
		a.Error("Error running application", slog.String(logging.KeyError, err.Error()))
		os.Exit(1)
	}
}
