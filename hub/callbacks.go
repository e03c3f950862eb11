package hub

import "time"

// Upload phases reported through Progress.Phase.
const (
	PhaseInvalidating = "invalidating"
	PhaseWriting      = "writing"
	PhaseFinalizing   = "finalizing"
	PhaseComplete     = "complete"
)

// Progress contains information about upload progress.
// Passed to ProgressCallback during Upload.
type Progress struct {
	// Phase describes the current upload phase:
	//   "invalidating" - Clearing the stored program (meta size 0)
	//   "writing"      - Writing image chunks to user RAM
	//   "finalizing"   - Activating the program (meta size = image size)
	//   "complete"     - Upload finished successfully
	Phase string

	// ChunksWritten is the number of user RAM chunks written so far
	ChunksWritten int

	// TotalChunks is the number of chunks in the image
	TotalChunks int

	// BytesWritten is the number of image bytes written so far
	BytesWritten int

	// TotalBytes is the image size
	TotalBytes int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the upload started
	ElapsedTime time.Duration
}

// ProgressCallback is called during Upload to report progress.
// Implementations should return quickly to avoid slowing the upload.
//
// Example:
//
//	up := hub.NewUploader(conn,
//	    hub.WithProgressCallback(func(p hub.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d bytes\n",
//	            p.Phase, p.Percentage, p.BytesWritten, p.TotalBytes)
//	    }),
//	)
type ProgressCallback func(Progress)

// StateCallback is called after every hub-side state change.
type StateCallback func(from, to State)

// CompileStateCallback is called after every compile state change.
type CompileStateCallback func(CompileState)

// StdoutCallback receives program output seen by Controller.Follow.
type StdoutCallback func(text string)

// Logger is an optional logging interface that can be provided to the
// uploader and controller. This allows integration with any logging
// framework; internal/logging adapts zap.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
