// Package io provides the devices an LC-3 machine talks to: the Console
// (keyboard and display bytes over an io.Reader and io.Writer) and the
// object Image format used to load programs into memory.
package io
