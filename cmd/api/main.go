package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/skylens/videopulse/internal/services"
)

var (
	apiInstance *services.APIFunction
	once        sync.Once
	initErr     error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "VideoAnalysisAPI" is the entry point name configured in GCP.
	functions.HTTP("VideoAnalysisAPI", handleRequest)
}

// main is required by the Go Functions Framework.
func main() {}

func handleRequest(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		apiInstance, initErr = services.NewAPI(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	apiInstance.Handle(w, r)
}
