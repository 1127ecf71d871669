// Package logger wraps zap to provide:
//   - a global sugared logger writing a console format to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - leveled helpers (Infof, ErrorKV, etc.) that log through the context logger.
//
// Packaging and publishing code accepts a context and logs through it so every
// message carries the name and key-values of the operation that produced it.
package logger
