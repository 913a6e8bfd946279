// ABOUTME: WebSocket server streaming negotiation report entries live
// ABOUTME: Serves the backlog on connect, then follows new entries
package logstream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"golang.org/x/sync/errgroup"
)

// wireEntry is the JSON shape of a report entry on the stream.
type wireEntry struct {
	Time      string `json:"time"`
	Stage     string `json:"stage"`
	Requested string `json:"requested,omitempty"`
	Actual    string `json:"actual,omitempty"`
	Note      string `json:"note"`
}

func toWire(e report.Entry) wireEntry {
	w := wireEntry{
		Time:  e.Time.Format(time.RFC3339Nano),
		Stage: string(e.Stage),
		Note:  e.Note,
	}
	if e.Requested != nil {
		w.Requested = e.Requested.String()
	}
	if e.Actual != nil {
		w.Actual = e.Actual.String()
	}
	return w
}

// Server exposes the negotiation report over HTTP: a live websocket
// stream on /ws and the full text dump on /report. Meant for watching a
// probe run from a second machine while handling the device.
type Server struct {
	rep      *report.Reporter
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New creates a log stream server for rep.
func New(rep *report.Reporter) *Server {
	s := &Server{
		rep: rep,
		mux: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Diagnostic tool on a trusted network; all origins accepted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/report", s.handleReport)
	return s
}

// Handler returns the HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("log stream listening on %s", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := s.rep.WriteTo(w); err != nil {
		log.Printf("report write failed: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before sending the backlog so entries recorded during
	// the send are not lost; duplicates are preferable to gaps.
	updates := s.rep.Subscribe()
	defer s.rep.Unsubscribe(updates)

	for _, e := range s.rep.Entries() {
		if err := s.writeEntry(conn, e); err != nil {
			return
		}
	}

	// Drain reads so close frames and pings are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeEntry(conn, e); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEntry(conn *websocket.Conn, e report.Entry) error {
	data, err := json.Marshal(toWire(e))
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
