// Package process supervises the frontend bundler's watch process.
//
// In development the console is usually run next to a bundler in watch mode
// that rebuilds web.dir on every source change. The Supervisor starts that
// command, relays its output line by line into the console log, restarts it
// with exponential backoff when it exits unexpectedly, and stops the whole
// process group on shutdown.
//
// Example usage:
//
//	sup, err := process.NewSupervisor(process.Config{
//	    Name:    "bundler",
//	    Command: []string{"npm", "run", "watch"},
//	    WorkDir: "ui",
//	    Ready:   process.FileReady("ui/dist/index.html"),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process
