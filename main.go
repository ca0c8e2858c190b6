// ./main.go
package main

import (
	"github.com/xkilldash9x/videx-autofill/cmd"
)

func main() {
	cmd.Execute()
}
