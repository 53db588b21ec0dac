package main

import "github.com/frahmantamala/upi-payments/cmd"

func main() {
	cmd.Execute()
}
