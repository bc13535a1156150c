// Package serial provides ports.Transport implementations.
//
// Port wraps any byte stream (a tty device, a pty master, a socket) and splits what it
// reads into lines for subscribers. Virtual opens a pseudo-terminal pair so another
// program can play the device. Simulator answers commands from a script and never
// touches the operating system.
package serial
