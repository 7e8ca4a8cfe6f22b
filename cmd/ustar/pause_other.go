//go:build !windows

package main

func pause() {}
