package oauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// callbackListener is the short-lived localhost server that receives
// the browser redirect. The port is a singleton resource shared by all
// redirect platforms, so the listener must be torn down on every exit
// path or the next flow cannot bind it.
type callbackListener struct {
	srv      *http.Server
	payloads chan callbackPayload
}

type callbackPayload struct {
	code      string
	state     string
	remoteErr string
}

func newCallbackListener(port int) (*callbackListener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListenerBind, err)
	}

	l := &callbackListener{payloads: make(chan callbackPayload, 1)}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", l.handleCallback)
	l.srv = &http.Server{Handler: mux}

	go l.srv.Serve(ln)
	return l, nil
}

func (l *callbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payload := callbackPayload{
		code:      q.Get("code"),
		state:     q.Get("state"),
		remoteErr: q.Get("error"),
	}

	// Only the first redirect counts.
	select {
	case l.payloads <- payload:
	default:
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if payload.remoteErr != "" || payload.code == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "<html><body>Authorization was not completed. You can close this window.</body></html>")
		return
	}
	fmt.Fprint(w, "<html><body>Connected. You can close this window.</body></html>")
}

// wait blocks for the redirect, a timeout, or caller cancellation.
func (l *callbackListener) wait(ctx context.Context, timeout time.Duration) (callbackPayload, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p := <-l.payloads:
		return p, nil
	case <-timer.C:
		return callbackPayload{}, ErrFlowTimeout
	case <-ctx.Done():
		return callbackPayload{}, ctx.Err()
	}
}

func (l *callbackListener) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.srv.Shutdown(ctx)
}
