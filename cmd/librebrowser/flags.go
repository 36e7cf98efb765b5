package main

import "time"

const defaultAPITimeout = 10 * time.Second

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

type ServeFlags struct {
	Daemonize bool
	PidFile   string
	LogFile   string
}

type OpenFlags struct {
	URL         string
	Version     string
	WindowTitle string
	DisplayName string
}

type TailFlags struct {
	Lines int
}
