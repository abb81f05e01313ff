package serviceutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Returns a context that will live until Ctrl+C is pressed
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}

// StartHttpServer serves the handler over http/1 and h2c until ctx is done.
func StartHttpServer(ctx context.Context, port int, handler http.Handler) {
	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("listening to http...", "port", port)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		Fatal(fmt.Sprintf("failed to listen on port %d", port), err)
	}
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// WriteJson writes value as the json body of the response.
func WriteJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		slog.Warn("write json response", "err", err.Error())
	}
}

type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteError writes the {success: false, message} body every failed request gets.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJson(w, status, ErrorBody{Success: false, Message: message})
}

// ReadJson decodes the request body into T, an empty body decodes into the zero value.
func ReadJson[T any](r *http.Request) (T, error) {
	var value T
	if r.Body == nil {
		return value, nil
	}
	err := json.NewDecoder(r.Body).Decode(&value)
	if errors.Is(err, io.EOF) {
		return value, nil
	}
	return value, err
}
