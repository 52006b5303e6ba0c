package main

import (
	"os"

	"github.com/veranemoloko/vision-downloader/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
