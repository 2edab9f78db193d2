package warmup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopcart/lib/mycontext"
	"github.com/MarcGrol/shopcart/lib/myerrors"
	"github.com/MarcGrol/shopcart/lib/myhttp"
	"github.com/MarcGrol/shopcart/lib/mylog"
)

// Readiness is implemented by *cart.Store.
type Readiness interface {
	IsReady() bool
	Err() error
	PersistFailures() int
}

type webService struct {
	logger    mylog.Logger
	readiness Readiness
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(readiness Readiness, logger mylog.Logger) *webService {
	return &webService{
		logger:    logger,
		readiness: readiness,
	}
}

func (s webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/_ah/warmup", s.warmupPage()).Methods("GET")
}

func (s *webService) warmupPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		if !s.readiness.IsReady() {
			errorWriter.WriteError(c, w, 1, myerrors.NewUnavailableError(fmt.Errorf("cart is still hydrating")))
			return
		}

		message := fmt.Sprintf("Cart ready, %d persist failures", s.readiness.PersistFailures())
		err := s.readiness.Err()
		if err != nil {
			message = fmt.Sprintf("Cart ready after hydration error (%s), %d persist failures", err, s.readiness.PersistFailures())
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: message,
		})
	}
}
