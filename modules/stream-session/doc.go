// Package streamsession turns the latest-frame supplier into a per-client
// multipart/x-mixed-replace chunk sequence.
//
// Each connected client gets one Session. The session remembers the last
// sequence it emitted and, on every poll, asks the supplier for anything
// newer. Frames published between two polls are skipped, never queued, so a
// slow client always gets the newest image and can never slow the camera or
// other clients down.
//
//	sess := streamsession.New(supplier, streamsession.Config{})
//	w.Header().Set("Content-Type", sess.ContentType())
//	err := sess.Run(r.Context(), func(c streamsession.Chunk) error {
//	    if _, err := c.WriteTo(w); err != nil {
//	        return err
//	    }
//	    flusher.Flush()
//	    return nil
//	})
//
// Wire format of one chunk:
//
//	--frame\r\n
//	Content-Type: image/jpeg\r\n
//	\r\n
//	<jpeg bytes>\r\n
package streamsession
