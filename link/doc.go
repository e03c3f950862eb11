// Package link owns the wireless connection to a Pybricks hub.
//
// It exposes a single outbound write primitive (Conn.Write) and a single
// inbound event stream (Conn.Subscribe). No other package touches the
// radio directly.
//
// # Connecting
//
//	m := link.NewManager(bluetooth.NewAdapter(), link.WithLogger(logger))
//	conn, err := m.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Disconnect(context.Background())
//
//	caps := conn.Capabilities()
//	fmt.Printf("max write size: %d\n", caps.MaxWriteSize)
//
// Connect fails with ErrLinkUnavailable when there is no usable radio and
// with ErrNoDeviceSelected when no hub was selected before the scan timeout.
// Device information and capabilities are read best-effort; a missing
// capabilities characteristic yields protocol.DefaultHubCapabilities.
//
// # Events
//
// Notifications are queued by the platform callback and delivered in order
// by one goroutine per connection:
//
//	events, cancel := conn.Subscribe()
//	defer cancel()
//	for ev := range events {
//	    switch ev.Kind {
//	    case link.EventStatus:
//	        fmt.Println(ev.Status.Flags)
//	    case link.EventStdout:
//	        fmt.Print(ev.Text)
//	    }
//	}
//
// Unknown event types are logged and dropped. With StdoutBatched, stdout
// text is held back and delivered right before the next status report.
//
// # Link Loss
//
// When the remote end drops the connection or Disconnect is called, Done is
// closed, every subscription channel is closed and every pending or later
// Write returns ErrLinkLost.
package link
