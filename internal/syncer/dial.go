package syncer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/session/ftp"
	"github.com/eugenetaranov/sitepush/internal/session/local"
	"github.com/eugenetaranov/sitepush/internal/session/sftp"
	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

// Dialer opens a session to an endpoint.
type Dialer func(ctx context.Context, ep session.Endpoint) (session.Session, error)

// NewDialer returns a Dialer that picks the session implementation from the
// endpoint protocol.
func NewDialer(logger *log.Logger) Dialer {
	return func(ctx context.Context, ep session.Endpoint) (session.Session, error) {
		if err := ep.Validate(); err != nil {
			return nil, syncerr.Connection("dial", ep.String(), err)
		}

		switch ep.Protocol {
		case session.ProtocolFTP:
			s, err := ftp.Dial(ctx, ep, ftp.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			return s, nil

		case session.ProtocolSFTP:
			s, err := sftp.Dial(ctx, ep, sftp.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			return s, nil

		case session.ProtocolLocal:
			// Host, when set, is the base directory remote paths resolve under.
			return local.New(local.WithRoot(ep.Host), local.WithLogger(logger)), nil

		default:
			return nil, syncerr.Connection("dial", ep.String(), fmt.Errorf("unknown protocol: %s", ep.Protocol))
		}
	}
}

// Dial opens a session to ep with the default logger.
func Dial(ctx context.Context, ep session.Endpoint) (session.Session, error) {
	return NewDialer(log.Default())(ctx, ep)
}
