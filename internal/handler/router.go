package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	fileHandler *FileHandler,
	operationHandler *OperationHandler,
	sessionHandler *SessionHandler,
	allowedOrigins []string,
	middlewares ...mux.MiddlewareFunc,
) http.Handler {
	router := mux.NewRouter()
	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"pdf-annotator"}`))
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// File routes
	api.HandleFunc("/files", fileHandler.UploadFile).Methods("POST")
	api.HandleFunc("/files/{id}", fileHandler.GetFile).Methods("GET")
	api.HandleFunc("/files/{id}/download", fileHandler.DownloadFile).Methods("GET")

	// Processing routes
	api.HandleFunc("/operations", operationHandler.SubmitOperation).Methods("POST")
	api.HandleFunc("/operations/{id}", operationHandler.GetOperation).Methods("GET")
	api.HandleFunc("/operations/{id}", operationHandler.CancelOperation).Methods("DELETE")
	api.HandleFunc("/operations/{id}/events", operationHandler.StreamOperation).Methods("GET")

	// Session routes
	api.HandleFunc("/sessions", sessionHandler.CreateSession).Methods("POST")
	s := api.PathPrefix("/sessions/{id}").Subrouter()
	s.HandleFunc("", sessionHandler.GetSession).Methods("GET")
	s.HandleFunc("", sessionHandler.CloseSession).Methods("DELETE")
	s.HandleFunc("/tool", sessionHandler.SetTool).Methods("PUT")
	s.HandleFunc("/gestures/{phase:begin|move|end}", sessionHandler.Gesture).Methods("POST")
	s.HandleFunc("/text", sessionHandler.EnterText).Methods("POST")
	s.HandleFunc("/text", sessionHandler.CancelText).Methods("DELETE")
	s.HandleFunc("/text-edit", sessionHandler.CommitTextEdit).Methods("POST")
	s.HandleFunc("/text-edit", sessionHandler.CancelTextEdit).Methods("DELETE")
	s.HandleFunc("/undo", sessionHandler.Undo).Methods("POST")
	s.HandleFunc("/redo", sessionHandler.Redo).Methods("POST")
	s.HandleFunc("/pages/{page:[0-9]+}/annotations", sessionHandler.ListAnnotations).Methods("GET")
	s.HandleFunc("/annotations/{annotationId}", sessionHandler.DeleteAnnotation).Methods("DELETE")
	s.HandleFunc("/hit", sessionHandler.HitTest).Methods("GET")
	s.HandleFunc("/viewport", sessionHandler.UpdateViewport).Methods("PUT")
	s.HandleFunc("/viewport/zoom-in", sessionHandler.ZoomIn).Methods("POST")
	s.HandleFunc("/viewport/zoom-out", sessionHandler.ZoomOut).Methods("POST")
	s.HandleFunc("/render.png", sessionHandler.RenderPNG).Methods("GET")
	s.HandleFunc("/error/dismiss", sessionHandler.DismissError).Methods("POST")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
