// Package app assembles the upload pipeline from a [startup.Config]. The
// gateway and the CLI share it so both run the same stack.
package app
