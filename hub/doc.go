// Package hub uploads programs to a Pybricks hub and tracks whether they run.
//
// # Overview
//
// This package orchestrates the program deployment sequence:
//   - Compiling sources into a multi-module image (via package mpy)
//   - Invalidating the stored program
//   - Writing the image to user RAM in MaxWriteSize-bounded chunks
//   - Activating the program at its final size
//   - Starting the program and following status reports
//
// # Basic Usage
//
// The simplest way to run a program:
//
//	m := link.NewManager(bluetooth.NewAdapter())
//	conn, err := m.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Disconnect(context.Background())
//
//	ctrl := hub.NewController(conn, &mpy.ExecCompiler{})
//	events, cancel := conn.Subscribe()
//	defer cancel()
//	go ctrl.Follow(ctx, events)
//
//	sources, _ := mpy.ReadSources("main.py")
//	if _, err := ctrl.CompileAndUploadAndRun(ctx, sources); err != nil {
//	    log.Fatal(err)
//	}
//
// # Uploading Only
//
// The Uploader can be used on its own with any image:
//
//	up := hub.NewUploader(conn,
//	    hub.WithProgressCallback(func(p hub.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//	err := up.Upload(ctx, img.Data)
//
// # Program State
//
// The controller keeps a hub-side state (Idle, Starting, Running, Stopping,
// Uploading). Starting and Stopping are optimistic and are corrected by the
// next status report; the user-program-running bit always decides.
//
// # Error Handling
//
// The package provides structured error types:
//   - UploadFailedError: an upload step failed (carries step and offset)
//   - ProgramTooLargeError: the image exceeds MaxUserProgramSize
//   - WriteSizeError: MaxWriteSize is too small for any payload
//   - StateError: the operation is not allowed in the current state
//
// Nothing is retried. Link loss surfaces as link.ErrLinkLost inside the
// returned error:
//
//	if errors.Is(err, link.ErrLinkLost) {
//	    // reconnect
//	}
package hub
