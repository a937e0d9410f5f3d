// Package transcoder shrinks videos before upload.
//
// An [Engine] runs an ordered list of [Tier] implementations and returns the
// first success:
//   - software: ffmpeg with libvpx-vp9/libopus into 720p WebM
//   - hardware: GPU decode and H.264 encode (NVENC, VAAPI or VideoToolbox)
//   - capture: real-time re-recording of the stream into WebM chunks
//   - passthrough: the original bytes, which never fails
//
// Inputs that are not video/* or that exceed the size cap are rejected
// before any tier runs. All external programs go through a [CommandRunner],
// and temporary files are removed on every exit path.
package transcoder
