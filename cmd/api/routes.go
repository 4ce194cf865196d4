package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/mcclellann/loanTracker/pkg/logger"
	"go.uber.org/zap"
)

// NewRouter wires the loan routes behind CORS and request logging.
func NewRouter(s *Server, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/loans", s.listLoansHandler).Methods(http.MethodGet)
	router.HandleFunc("/loans", s.createLoanHandler).Methods(http.MethodPost)
	router.HandleFunc("/loans/user/{userId}", s.userLoansHandler).Methods(http.MethodGet)
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods(http.MethodGet)
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods(http.MethodPatch)
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods(http.MethodDelete)
	router.HandleFunc("/loans/{id}/pay", s.recordPaymentHandler).Methods(http.MethodPost)

	return withMiddleware(router, allowedOrigins)
}

// withMiddleware puts CORS, request ids, access logging and panic recovery in
// front of h, outermost first.
func withMiddleware(h http.Handler, allowedOrigins []string) http.Handler {
	h = middleware.Recoverer(h)
	h = requestLogger(h)
	h = middleware.RequestID(h)
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})(h)
}

// requestLogger echoes the request id in the response, carries it into the
// zap context and logs one line when the request completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		w.Header().Set(middleware.RequestIDHeader, requestID)
		ctx := logger.WithRequestID(r.Context(), requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.CtxInfo(ctx, "request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
