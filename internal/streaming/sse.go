package streaming

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// WriteSSE writes one event as a server-sent-events frame and flushes it.
// A flush error means the client is gone.
func WriteSSE(w *bufio.Writer, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
		return err
	}
	return w.Flush()
}
