package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	formcodec "github.com/go-playground/form/v4"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopcart/lib/mycontext"
	"github.com/MarcGrol/shopcart/lib/myerrors"
	"github.com/MarcGrol/shopcart/lib/myhttp"
	"github.com/MarcGrol/shopcart/lib/mylog"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

type CartResponse struct {
	Products []LineItem `json:"products"`
	Count    int        `json:"count"`
	Total    string     `json:"total"`
}

func newCartResponse(current Cart) CartResponse {
	if current == nil {
		current = Cart{}
	}
	return CartResponse{
		Products: current,
		Count:    current.Count(),
		Total:    current.Total().StringFixed(2),
	}
}

// NewWebService exposes the store to the mobile client. The store must be
// provided, there is no global one to fall back to.
func NewWebService(store *Store, logger mylog.Logger) (*webService, error) {
	s, err := newService(store, logger)
	if err != nil {
		return nil, err
	}

	return &webService{
		logger:  logger,
		service: s,
	}, nil
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/api/cart", s.getCartPage()).Methods("GET")
	router.HandleFunc("/api/cart/products", s.addToCartPage()).Methods("POST")
	router.HandleFunc("/api/cart/products/{productID}/increment", s.incrementPage()).Methods("PUT")
	router.HandleFunc("/api/cart/products/{productID}/decrement", s.decrementPage()).Methods("PUT")
}

func (s *webService) getCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		current, err := s.service.getCart(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(current))
	}
}

func (s *webService) addToCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		product, err := parseProduct(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		current, err := s.service.addToCart(c, product)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(current))
	}
}

func (s *webService) incrementPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		current, err := s.service.increment(c, mux.Vars(r)["productID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(current))
	}
}

func (s *webService) decrementPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		current, err := s.service.decrement(c, mux.Vars(r)["productID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(current))
	}
}

func parseProduct(r *http.Request) (Product, error) {
	product := Product{}

	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return product, myerrors.NewUnsupportedMediaTypeError(fmt.Errorf("error parsing content-type: %s", err))
	}

	switch contentType {
	case "application/json":
		err = json.NewDecoder(r.Body).Decode(&product)
		if err != nil {
			return product, myerrors.NewInvalidInputError(fmt.Errorf("error decoding json: %s", err))
		}
	case "application/x-www-form-urlencoded":
		err = r.ParseForm()
		if err != nil {
			return product, myerrors.NewInvalidInputError(err)
		}
		err = formcodec.NewDecoder().Decode(&product, r.Form)
		if err != nil {
			return product, myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
		}
	default:
		return product, myerrors.NewUnsupportedMediaTypeError(fmt.Errorf("unsupported content-type %s", contentType))
	}

	return product, nil
}
