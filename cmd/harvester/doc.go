// Package main is the entry point for the harvester executable.
package main
