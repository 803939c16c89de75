package main

import (
	"log"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
