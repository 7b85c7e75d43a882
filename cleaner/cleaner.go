package cleaner

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/s4mli/cola/common"
	"github.com/sirupsen/logrus"
)

// Cleanable is anything holding a remote or pooled resource that must be
// released on shutdown.
type Cleanable interface {
	Stop()
	Name() string
}

var (
	resourcesMu sync.Mutex
	resources   []Cleanable
)

func Register(r ...Cleanable) {
	resourcesMu.Lock()
	defer resourcesMu.Unlock()
	resources = append(resources, r...)
}

// Run blocks until ctx is cancelled or a termination signal arrives, then
// stops every registered resource in reverse registration order.
func Run(ctx context.Context, logger logrus.FieldLogger) {
	done := make(chan struct{})
	cleanup := func(reason string) {
		resourcesMu.Lock()
		stopping := resources
		resources = nil
		resourcesMu.Unlock()
		for i := len(stopping) - 1; i >= 0; i-- {
			logger.Warnf("( %s ) terminated, %s", stopping[i].Name(), reason)
			stopping[i].Stop()
		}
		close(done)
	}
	common.TerminateIf(ctx,
		func() {
			cleanup("cancel")
		},
		func(s os.Signal) {
			cleanup(fmt.Sprintf("signal %+v", s))
		})
	<-done
}
