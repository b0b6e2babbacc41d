/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/TaichKarna/levlelup/cmd"

func main() {
	cmd.Execute()
}
