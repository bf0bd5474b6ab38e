package main

import (
	"os"
	"testing"
)

func TestMain_Execute(t *testing.T) {
	os.Args = []string{"swimlane", "--help"}
	main()
}
