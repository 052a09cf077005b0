//go:build windows

package main

import "os"

// notifyReload is a no-op; Windows has no SIGHUP and the config watcher
// covers reloads.
func notifyReload(chan<- os.Signal) {}
