package main

import "fmt"

// VersionCmd prints version info.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("sifibridge " + version)

	return nil
}
