package main

import "github.com/Jackstonebreaker/mangapark-image-fix/cmd"

func main() {
	cmd.Execute()
}
