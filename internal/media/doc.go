// Package media downscales oversized images before they are uploaded.
//
// libvips (through govips) is used when [InitVips] succeeded at startup;
// otherwise the pure Go imaging library does the work, with WebP decoding
// from golang.org/x/image.
package media
