package ports

import (
	"context"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// UIBridge is the executor's only channel to a human.
// Implementations must be safe for use from the executor goroutine while a front end
// reads and answers from another.
type UIBridge interface {
	// Post publishes a request and returns its ID. It does not block on the front end.
	Post(ctx context.Context, req domain.Request) (string, error)

	// Await blocks until the request is answered, ctx is done, or the front end goes away.
	// A front end that is gone resolves to domain.ErrUIUnavailable.
	Await(ctx context.Context, id string) (domain.Reply, error)

	// Notify publishes a status event. It must not block.
	Notify(ctx context.Context, e domain.Event)
}
