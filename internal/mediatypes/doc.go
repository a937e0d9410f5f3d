// Package mediatypes provides the shared media payload type and MIME helpers
// used across mediadrop.
//
// This package exists as a dependency-free foundation that can be imported by the
// transcoder, the upload clients and the HTTP layer without creating import cycles.
//
// # Payloads
//
// A Blob is an immutable byte payload plus its MIME type and optional file name:
//
//	blob := mediatypes.NewBlob("clip.mov", data, "")
//	blob.Kind()        // mediatypes.KindVideo
//	blob.ContentType() // "video/quicktime"
//
// # Kinds
//
// KindOf maps a MIME type (codec parameters allowed) onto KindVideo, KindAudio,
// KindImage or KindOther. Only the first three are uploadable.
package mediatypes
