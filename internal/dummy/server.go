package dummy

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

type ServerConfig struct {
	Port int
}

// Handler serves the demo endpoints agentq scripts can be pointed at.
func Handler() http.Handler {
	mux := http.NewServeMux()

	// 10-50ms
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		w.Write([]byte("Fast response"))
	})

	// 1s-2s, useful against short timeouts
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		w.Write([]byte("Slow response"))
	})

	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		switch {
		case rnd < 0.2:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		case rnd < 0.4:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		default:
			w.Write([]byte("OK"))
		}
	})

	// every fifth request fails
	var flaky atomic.Int64
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1)%5 == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Error: try again"))
			return
		}
		w.Write([]byte("OK"))
	})

	// a page for verify / verify_negative rules; ?fail=1 swaps in an error page
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Query().Get("fail") != "" {
			w.Write([]byte("<html><body><h1>Error</h1></body></html>"))
			return
		}
		w.Write([]byte("<html><body><h1>Welcome</h1></body></html>"))
	})

	return mux
}

// Start serves Handler on the configured port in the background.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Dummy Server running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /fast, /slow, /error, /flaky, /content")

	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed: %v\n", err)
		}
	}()
	return server
}
