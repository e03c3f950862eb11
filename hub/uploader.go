package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-pybricks/protocol"
)

// Link is the connection used by the uploader and controller.
// *link.Conn implements it.
type Link interface {
	// Write sends one command frame and waits for it to complete
	Write(ctx context.Context, frame []byte) error

	// Capabilities returns the capability record of the connected hub
	Capabilities() protocol.HubCapabilities
}

// Uploader delivers program images to a hub's user RAM.
type Uploader struct {
	link   Link
	config Config
}

// NewUploader creates an Uploader writing through the given link.
//
// Example:
//
//	up := hub.NewUploader(conn, hub.WithProgressCallback(progressFunc))
//	err := up.Upload(ctx, img.Data)
func NewUploader(l Link, opts ...Option) *Uploader {
	if l == nil {
		panic("link cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return newUploader(l, cfg)
}

func newUploader(l Link, cfg Config) *Uploader {
	return &Uploader{link: l, config: cfg}
}

// Upload performs the upload handshake, strictly in order:
//  1. Write program meta with size 0 (invalidates the stored program)
//  2. Write the image in chunks of MaxWriteSize-5 bytes, offsets from 0
//  3. Write program meta with the image size (activates the program)
//
// Each write completes before the next is sent. Any failure aborts at once
// with an *UploadFailedError; there are no retries. An empty image performs
// steps 1 and 3 only.
//
// The image is checked against the hub capabilities before anything is
// written: a MaxWriteSize below 6 yields a *WriteSizeError and an image
// larger than MaxUserProgramSize yields a *ProgramTooLargeError, both
// wrapped in an *UploadFailedError with Step StepValidate.
func (u *Uploader) Upload(ctx context.Context, image []byte) error {
	caps := u.link.Capabilities()

	chunkSize := caps.ChunkSize()
	if chunkSize <= 0 {
		return &UploadFailedError{
			Step: StepValidate,
			Err:  &WriteSizeError{MaxWriteSize: int(caps.MaxWriteSize), Min: protocol.MinWriteSize},
		}
	}
	if u.config.EnforceProgramSize && caps.MaxUserProgramSize > 0 && uint64(len(image)) > uint64(caps.MaxUserProgramSize) {
		return &UploadFailedError{
			Step: StepValidate,
			Err:  &ProgramTooLargeError{Size: len(image), Max: caps.MaxUserProgramSize},
		}
	}

	startTime := time.Now()
	total := len(image)
	totalChunks := (total + chunkSize - 1) / chunkSize

	u.config.logDebug("upload started",
		"size", total,
		"chunk_size", chunkSize,
		"chunks", totalChunks,
	)

	// Step 1: invalidate
	u.reportProgress(Progress{
		Phase:       PhaseInvalidating,
		TotalChunks: totalChunks,
		TotalBytes:  total,
	})

	if err := u.link.Write(ctx, protocol.BuildWriteUserProgramMetaCmd(0)); err != nil {
		return u.fail(StepInvalidate, 0, err)
	}

	// Step 2: chunks
	written := 0
	for offset := 0; offset < total; offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return u.fail(StepWrite, offset, fmt.Errorf("cancelled: %w", err))
		}

		end := offset + chunkSize
		if end > total {
			end = total
		}

		if err := u.link.Write(ctx, protocol.BuildWriteUserRAMCmd(uint32(offset), image[offset:end])); err != nil {
			return u.fail(StepWrite, offset, err)
		}

		written++
		u.reportProgress(Progress{
			Phase:         PhaseWriting,
			ChunksWritten: written,
			TotalChunks:   totalChunks,
			BytesWritten:  end,
			TotalBytes:    total,
			Percentage:    5 + float64(end)/float64(total)*90,
			ElapsedTime:   time.Since(startTime),
		})
	}

	// Step 3: finalize
	u.reportProgress(Progress{
		Phase:         PhaseFinalizing,
		ChunksWritten: written,
		TotalChunks:   totalChunks,
		BytesWritten:  total,
		TotalBytes:    total,
		Percentage:    95,
		ElapsedTime:   time.Since(startTime),
	})

	if err := u.link.Write(ctx, protocol.BuildWriteUserProgramMetaCmd(uint32(total))); err != nil {
		return u.fail(StepFinalize, total, err)
	}

	u.reportProgress(Progress{
		Phase:         PhaseComplete,
		ChunksWritten: written,
		TotalChunks:   totalChunks,
		BytesWritten:  total,
		TotalBytes:    total,
		Percentage:    100,
		ElapsedTime:   time.Since(startTime),
	})

	u.config.logInfo("upload complete",
		"bytes", total,
		"chunks", written,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

func (u *Uploader) fail(step string, offset int, err error) error {
	u.config.logError("upload failed", "step", step, "offset", offset, "error", err)
	return &UploadFailedError{Step: step, Offset: offset, Err: err}
}

// reportProgress calls the progress callback if configured.
func (u *Uploader) reportProgress(progress Progress) {
	if u.config.ProgressCallback != nil {
		u.config.ProgressCallback(progress)
	}
}
