package main

import (
	"log"
	"os"

	"github.com/TFMV/panewatch/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// A panicking owner must not take the terminal down without a message.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v", r)
			os.Exit(1)
		}
	}()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
