// ./main.go
package main

import (
	"github.com/vexaline/browsebench/cmd"
)

func main() {
	cmd.Execute()
}
