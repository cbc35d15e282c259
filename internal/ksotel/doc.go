// Package ksotel wraps the OpenTelemetry APIs used by the keyed state register,
// so that the rest of the module can reference only this package.
package ksotel
