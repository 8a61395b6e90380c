// Package camera implements the JPEG camera pipeline.
//
// Frames arrive from simulators and hardware feeds over UDP (one frame
// per datagram) or TCP (length-prefixed records for frames above the
// datagram limit), keyed by camera id. The latest frame per camera is
// kept in a single-slot store and simultaneously pushed to every open
// MJPEG stream for that camera.
//
// Distribution is plain HTTP on a chi router: a multipart stream per
// connection, single-frame polling, and discovery endpoints. A camera
// exists the instant its first frame arrives; there is no registration
// step.
package camera
