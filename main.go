package main

import (
	"github.com/ekaya-inc/snowflake-catalog/cmd"
)

func main() {
	cmd.Execute()
}
