// Command ilpatch switches the body temperature readout of Subnautica Below
// Zero from Fahrenheit to Celsius by patching the game's Assembly-CSharp.dll.
package main

import (
	"fmt"
	"os"
)

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := a.rootCommand().Execute()
	if err != nil {
		fmt.Fprintln(a.errOut, red(err.Error()))
	}
	a.pause()
	if err != nil {
		os.Exit(1)
	}
}
