// faceproof-verify runs one verification flow against a broker from the
// command line, printing session events as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/faceproof/faceproof/consent"
	"github.com/faceproof/faceproof/flow"
	"github.com/faceproof/faceproof/proto"
	"github.com/faceproof/faceproof/wsession"
	"github.com/rs/zerolog"
)

func main() {
	var (
		brokerURL = flag.String("broker", "http://localhost:8099", "broker base URL")
		userID    = flag.String("user", "", "user id to enrol or verify")
		claim     = flag.String("claim", "verify", "claim type: enrol or verify")
		assurance = flag.String("assurance", "genuine_presence", "assurance type: genuine_presence or liveness")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	req, err := buildRequest(*userID, *claim, *assurance)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid arguments")
	}

	client := flow.NewBrokerClient(*brokerURL, &http.Client{Timeout: 30 * time.Second})
	orch, err := flow.NewOrchestrator(client, client, &wsession.Factory{}, flow.Options{
		Consent:  consent.Static{Accepted: true},
		Canceled: flow.CanceledFails,
		Log:      &log,
		Sink: func(ev flow.Event) {
			e := log.Info().Stringer("event", ev.Kind)
			if ev.Kind == flow.EventProcessing {
				e = e.Float64("progress", ev.Progress).Str("message", ev.Message)
			}
			e.Msg("session")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := orch.Run(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("verification failed")
	}

	fmt.Println(res.Credential)
}

func buildRequest(userID, claim, assurance string) (*proto.TokenRequest, error) {
	req := &proto.TokenRequest{UserID: userID}

	switch claim {
	case "enrol":
		req.ClaimType = proto.ClaimType_Enrol
	case "verify":
		req.ClaimType = proto.ClaimType_Verify
	default:
		return nil, fmt.Errorf("unknown claim type %q", claim)
	}

	switch assurance {
	case "genuine_presence":
		req.AssuranceType = proto.AssuranceType_GenuinePresence
	case "liveness":
		req.AssuranceType = proto.AssuranceType_Liveness
	default:
		return nil, fmt.Errorf("unknown assurance type %q", assurance)
	}

	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return req, nil
}
