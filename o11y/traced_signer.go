package o11y

import (
	"context"
)

// Signer mirrors signer.Signer so the tracing wrapper does not import it.
type Signer interface {
	Sign(ctx context.Context, payload map[string]any) (string, error)
}

type tracedSigner struct {
	name   string
	signer Signer
}

var _ Signer = (*tracedSigner)(nil)

func NewTracedSigner(name string, signer Signer) Signer {
	return &tracedSigner{name: name, signer: signer}
}

func (t *tracedSigner) Sign(ctx context.Context, payload map[string]any) (_ string, err error) {
	ctx, span := Trace(ctx, t.name)
	defer func() {
		span.RecordError(err)
		span.End()
	}()
	return t.signer.Sign(ctx, payload)
}
