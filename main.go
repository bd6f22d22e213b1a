package main

import (
	"github.com/mj1618/hidbridge/cmd"

	_ "github.com/mj1618/hidbridge/internal/platform/darwin"
)

func main() {
	cmd.Execute()
}
