// Package imaging prepares images for multimodal chat requests.
//
// Images reach the server as local paths, http(s) URLs or data URIs. The
// Loader reads each source, normalizes its size and encoding, and returns a
// data URL that can be embedded as an image_url part.
//
// # Preparation
//
// Every image is decoded (PNG, JPEG, GIF or WebP), rotated according to its
// EXIF orientation, fit within 800x800 pixels with Lanczos resampling and
// re-encoded as JPEG at quality 80. Images already within bounds are only
// re-encoded.
//
// # Thread Safety
//
// Loader is safe for concurrent use. LoadAll fans out over a bounded
// errgroup and joins before returning; results keep the input order.
//
// # Memory Management
//
// Prepared images stay cached until Evict or Clear. For a long-running
// server handling many distinct images, clear the cache periodically.
package imaging
