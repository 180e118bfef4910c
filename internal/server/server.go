package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/rover2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	storeActor  *actor.PID
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, storeActor *actor.PID) *http.Server {
	NewServer := &Server{
		port:        cfg.HTTP.Port,
		rootContext: rootContext,
		storeActor:  storeActor,
		httpLog:     cfg.HTTP.Log,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
