package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopcart/lib/myconfig"
	"github.com/MarcGrol/shopcart/lib/mylog"
	"github.com/MarcGrol/shopcart/lib/mypubsub"
	"github.com/MarcGrol/shopcart/lib/mystore"
	"github.com/MarcGrol/shopcart/lib/mytime"
	"github.com/MarcGrol/shopcart/lib/myuuid"
	"github.com/MarcGrol/shopcart/services/cart"
	"github.com/MarcGrol/shopcart/services/warmup"
)

func main() {
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := myconfig.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}

	logger := mylog.New("cart")

	slots, slotsCleanup, err := mystore.New[cart.Slot](c, cfg)
	if err != nil {
		log.Fatalf("Error creating %s cart slot store: %s", cfg.ResolvedBackend(), err)
	}
	defer slotsCleanup()

	cartStore, err := cart.NewStore(c, slots, cart.WithSlotKey(cfg.SlotKey), cart.WithLogger(logger))
	if err != nil {
		log.Fatalf("Error creating cart store: %s", err)
	}
	defer cartStore.Close()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	relay, err := cart.NewRelay(cartStore, pubsub, mytime.RealNower{}, myuuid.RealUUIDer{}, logger)
	if err != nil {
		log.Fatalf("Error creating cart relay: %s", err)
	}
	go func() {
		err := relay.Run(c)
		if err != nil {
			log.Printf("Error relaying cart changes: %s", err)
		}
	}()

	router := mux.NewRouter()

	cartService, err := cart.NewWebService(cartStore, logger)
	if err != nil {
		log.Fatalf("Error creating cart service: %s", err)
	}
	cartService.RegisterEndpoints(c, router)

	warmup.NewService(cartStore, mylog.New("warmup")).RegisterEndpoints(c, router)

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Cloud-Trace-Context"},
		MaxAge:         300,
	})(router)

	startWebServerBlocking(c, cfg.Port, handler)
}

func startWebServerBlocking(c context.Context, port string, handler http.Handler) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-c.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Printf("Error stopping webserver: %s", err)
		}
	}()

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
