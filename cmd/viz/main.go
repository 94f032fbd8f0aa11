package main

import (
	"github.com/steve-taylor/viz/examples/components"
	"github.com/steve-taylor/viz/vizcli"
)

func main() {
	vizcli.Main(components.Register)
}
