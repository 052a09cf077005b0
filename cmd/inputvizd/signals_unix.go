//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyReload delivers SIGHUP, which reopens the log file and rereads the
// configuration.
func notifyReload(c chan<- os.Signal) {
	signal.Notify(c, syscall.SIGHUP)
}
