package main

import (
	"log"
	"os"

	"github.com/viant/mcpgate/gateway"
	_ "github.com/viant/scy/kms/blowfish"
)

func main() {
	if err := gateway.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
