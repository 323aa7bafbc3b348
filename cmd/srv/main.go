package main

import (
	"context"
	"log"
	"os"
)

func main() {
	s := &srv{ctx: context.Background()}
	s.loadApp()

	if err := s.app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
