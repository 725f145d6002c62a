package main

import (
	"github.com/outofforest/proton"
	"github.com/outofforest/ripple/test/wire"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message(wire.Echo{}),
		proton.Message(wire.Ping{}),
	)
}
