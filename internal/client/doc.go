// Package client talks to a running console server over HTTP.
//
// It is the Go counterpart of the browser front end: it logs in through
// /oauth/authenticate and reads or deletes devices through the /api proxy.
// The device list controller and the consolectl binary are built on it.
package client
