/*
	Copyright 2024 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/tm-telemetry-provider/cmd"

func main() {
	cmd.Execute()
}
