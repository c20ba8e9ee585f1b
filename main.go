package main

import "mindcare-booking/cmd"

func main() {
	cmd.Execute()
}
