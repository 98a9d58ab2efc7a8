// Package framesupplier implements the latest-frame broadcast buffer that
// sits between the camera ingest and the browser sessions.
//
// # Philosophy
//
// "Drop frames, never queue. Latency > Completeness."
//
// A browser watching a camera wants the newest image, not the backlog. The
// supplier therefore holds exactly one frame. Publishing replaces it; readers
// copy nothing and wait for nothing.
//
// # Architecture
//
//	stream-capture → Writer.Publish → [ slot: *Frame ] ← Cursor.TryNext ← session 1
//	   (1 writer)                      atomic pointer   ← Cursor.TryNext ← session 2
//	                                                    ← Cursor.TryNext ← session N
//
// Memory is O(1) frames regardless of reader count or publish rate.
//
// # Basic Usage
//
// Producer side (ingest adapter):
//
//	supplier := framesupplier.New()
//	w, err := supplier.Claim("rtsp-camera")
//	if err != nil {
//	    log.Fatal(err) // second producer: configuration error
//	}
//	defer w.Release()
//
//	w.Publish(&framesupplier.Frame{Data: jpeg, ContentType: "image/jpeg"})
//
// Consumer side (one per client connection):
//
//	cur := supplier.Subscribe(sessionID)
//	defer cur.Close()
//
//	for {
//	    frame := cur.TryNext()
//	    if frame == nil {
//	        time.Sleep(33 * time.Millisecond) // nothing new yet
//	        continue
//	    }
//	    write(frame)
//	}
//
// # Drop Semantics
//
// Skips are EXPECTED. A 30fps camera watched by a reader that polls at 10fps
// skips two out of three frames; the reader still always gets the newest one.
// Stats().Readers[id].Skipped counts them, Stats().Overwritten counts frames
// that no reader saw at all.
//
// # Thread Safety
//
//   - Claim/ReadLatest/Latest/Changed/Wait/Subscribe/Unsubscribe/Stats: concurrent use
//   - Writer.Publish: single producer goroutine (the claim enforces one writer)
//   - Cursor.TryNext/Next: the reader goroutine that owns the cursor
package framesupplier
