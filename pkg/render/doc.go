// Package render turns PDF pages into PNG bitmaps.
//
// A page is rasterized at the magnification of its quality tier, downscaled
// with high-quality resampling so neither dimension exceeds the tier's
// bounding box (never upscaled), and encoded both as raw PNG bytes and as
// a base64 string for inline transport.
package render
