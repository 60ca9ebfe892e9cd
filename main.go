package main

import "github.com/dhcgn/mail-to-pairs/cmd"

func main() {
	cmd.Execute()
}
