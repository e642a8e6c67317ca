package main

import (
	"github.com/fula-go/cryptostore/internal/app"
)

func main() {
	application := app.NewApp(".cryptostore/db")
	application.Execute()
}
