package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/gophblog/internal/admin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	os.Exit(admin.Execute(context.Background()))
}
