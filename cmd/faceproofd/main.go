package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	faceproof "github.com/faceproof/faceproof"
	"github.com/faceproof/faceproof/config"
	"github.com/faceproof/faceproof/rpc"
	"github.com/go-chi/traceid"
	"github.com/go-chi/transport"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		panic(err)
	}

	// HTTP transport chain to use for all outgoing connections
	transportChain := transport.Chain(
		http.DefaultTransport,
		transport.SetHeader("User-Agent", "verify-broker/"+faceproof.VERSION),
		traceid.Transport,
	)

	s, err := rpc.New(cfg, transportChain)
	if err != nil {
		panic(err)
	}
	defer s.Stop(context.Background())

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Service.Port))
	if err != nil {
		panic(err)
	}

	if err := s.Run(context.Background(), l); err != nil {
		panic(err)
	}
}
